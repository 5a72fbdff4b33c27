package singular

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
)

// DefaultAPIURL is the Singular.Live control endpoint.
const DefaultAPIURL = "https://app.singular.live/apiv1/control"

// maxResponseBytes bounds how much of an error response is kept.
const maxResponseBytes = 4 << 10

// HTTPAdapter PUTs composition updates to the control API.
//
// Thread Safety: Safe for concurrent use.
type HTTPAdapter struct {
	deviceID string
	apiURL   string
	token    string
	client   *http.Client
	observer playout.Observer
}

// NewHTTPAdapter creates an adapter for one control app token.
// Responses are reported to observer as debug or warning events.
func NewHTTPAdapter(deviceID, apiURL, token string, timeout time.Duration, observer playout.Observer) *HTTPAdapter {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if observer == nil {
		observer = playout.NopObserver{}
	}
	return &HTTPAdapter{
		deviceID: deviceID,
		apiURL:   strings.TrimRight(apiURL, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
		observer: observer,
	}
}

// Execute sends one Content update as a single-element JSON array.
func (a *HTTPAdapter) Execute(ctx context.Context, cmd dispatch.Command) error {
	content, ok := cmd.Payload.(Content)
	if !ok {
		return fmt.Errorf("%w: %T", ErrInvalidPayload, cmd.Payload)
	}

	body, err := json.Marshal([]Content{content})
	if err != nil {
		return fmt.Errorf("encoding %s update: %w", content.CompositionName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.apiURL+"/"+a.token, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// The URL carries the token, so only the cause is kept.
		return fmt.Errorf("sending %s update: %w", content.CompositionName, unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		a.observer.Debug(a.deviceID, fmt.Sprintf("%s: %s (%s)", content.CompositionName, resp.Status, cmd.Context))
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	msg := strings.TrimSpace(string(respBody))
	a.observer.Warning(a.deviceID, fmt.Sprintf("%s: bad response %s: %s (%s)",
		content.CompositionName, resp.Status, msg, cmd.Context))
	return fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, msg)
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
