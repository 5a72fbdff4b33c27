package ptz

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
)

// cgiPath is the AW-series PTZ control endpoint.
const cgiPath = "/cgi-bin/aw_ptz"

// maxResponseBytes bounds how much of a camera reply is read.
const maxResponseBytes = 4 << 10

// Camera error replies.
var errorReplies = map[string]string{
	"E1": "unsupported command",
	"E2": "camera busy",
	"E3": "value out of range",
}

// HTTPAdapter sends commands to one camera over its HTTP CGI interface.
//
// Thread Safety: Safe for concurrent use.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAdapter creates an adapter for the camera at host:port.
// A zero timeout leaves the client without one.
func NewHTTPAdapter(host string, port int, https bool, timeout time.Duration) *HTTPAdapter {
	scheme := "http"
	if https {
		scheme = "https"
	}
	hostPort := host
	if port > 0 {
		hostPort = net.JoinHostPort(host, strconv.Itoa(port))
	}
	return &HTTPAdapter{
		baseURL: scheme + "://" + hostPort,
		client:  &http.Client{Timeout: timeout},
	}
}

// newHTTPAdapterURL creates an adapter against a full base URL.
func newHTTPAdapterURL(baseURL string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAdapter{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Execute translates a diff command into a camera command and sends it.
// Zoom speed and zoom payloads are normalised values and are scaled here.
func (a *HTTPAdapter) Execute(ctx context.Context, cmd dispatch.Command) error {
	switch cmd.Kind {
	case SubtypePreset:
		v, err := intPayload(cmd)
		if err != nil {
			return err
		}
		return a.RecallPreset(ctx, v)
	case SubtypePresetSpeed:
		v, err := intPayload(cmd)
		if err != nil {
			return err
		}
		return a.SetPresetSpeed(ctx, v)
	case SubtypeZoomSpeed:
		v, err := floatPayload(cmd)
		if err != nil {
			return err
		}
		return a.SetZoomSpeed(ctx, ScaleZoomSpeed(v))
	case SubtypeZoom:
		v, err := floatPayload(cmd)
		if err != nil {
			return err
		}
		return a.SetZoom(ctx, ScaleZoom(v))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}

// RecallPreset recalls a stored preset by zero-based index.
func (a *HTTPAdapter) RecallPreset(ctx context.Context, preset int) error {
	_, err := a.send(ctx, fmt.Sprintf("#R%02d", preset))
	return err
}

// SetPresetSpeed sets the preset recall speed.
func (a *HTTPAdapter) SetPresetSpeed(ctx context.Context, speed int) error {
	_, err := a.send(ctx, fmt.Sprintf("UPVS%03d", speed))
	return err
}

// SetZoomSpeed starts or stops a continuous zoom. speed is in camera units,
// 01..99 with 50 as stop.
func (a *HTTPAdapter) SetZoomSpeed(ctx context.Context, speed int) error {
	_, err := a.send(ctx, fmt.Sprintf("#Z%02d", speed))
	return err
}

// SetZoom moves to an absolute zoom position in camera units, 0x555..0xFFF.
func (a *HTTPAdapter) SetZoom(ctx context.Context, level int) error {
	_, err := a.send(ctx, fmt.Sprintf("#AXZ%03X", level))
	return err
}

// Ping queries the power state. It reports true only when the camera
// answers that it is powered on.
func (a *HTTPAdapter) Ping(ctx context.Context) (bool, error) {
	reply, err := a.send(ctx, "#O")
	if err != nil {
		return false, err
	}
	return reply == "p1", nil
}

// send issues one CGI command and returns the trimmed reply.
func (a *HTTPAdapter) send(ctx context.Context, command string) (string, error) {
	u := a.baseURL + cgiPath + "?cmd=" + url.QueryEscape(command) + "&res=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", command, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending %s: %w", command, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading reply to %s: %w", command, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s for %s", ErrUnexpectedStatus, resp.Status, command)
	}

	reply := strings.TrimSpace(string(body))
	if reason, bad := errorReplies[reply]; bad {
		return "", fmt.Errorf("%w: %s (%s) for %s", ErrCommandRejected, reply, reason, command)
	}
	return reply, nil
}

func intPayload(cmd dispatch.Command) (int, error) {
	switch v := cmd.Payload.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s payload %T", ErrInvalidPayload, cmd.Kind, cmd.Payload)
	}
}

func floatPayload(cmd dispatch.Command) (float64, error) {
	switch v := cmd.Payload.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s payload %T", ErrInvalidPayload, cmd.Kind, cmd.Payload)
	}
}
