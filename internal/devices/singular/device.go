package singular

import (
	"fmt"
	"net/url"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
)

// NewDevice builds an IN_ORDER controller for one Singular.Live control
// app. A missing access token fails Init, not construction.
func NewDevice(cfg config.DeviceConfig, deps playout.Deps) (*playout.Controller[State], error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAPIURL, apiURL)
	}

	token := cfg.AccessToken
	opts := playout.Options[State]{
		ID:         cfg.ID,
		Reconciler: Reconciler{},
		Adapter:    NewHTTPAdapter(cfg.ID, apiURL, token, cfg.GetRequestTimeout(), deps.Observer),
		Mode:       dispatch.InOrder,
		Validate: func() error {
			if token == "" {
				return ErrNoAccessToken
			}
			return nil
		},
	}

	return playout.New(playout.WithDeps(opts, deps)), nil
}
