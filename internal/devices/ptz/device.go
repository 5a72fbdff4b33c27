package ptz

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-playout/internal/monitor"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
)

// NewDevice builds a BURST-mode controller for one camera.
//
// A camera without a host still gets a controller so it shows up in
// status; its Init fails with ErrNoHost.
//
// Parameters:
//   - cfg: the device entry from playout.devices
//   - deps: shared collaborators
//
// Returns:
//   - *playout.Controller[State]: the controller, not yet initialised
//   - error: if the connection monitor cannot be created
func NewDevice(cfg config.DeviceConfig, deps playout.Deps) (*playout.Controller[State], error) {
	opts := playout.Options[State]{
		ID:         cfg.ID,
		Reconciler: Reconciler{Compare: deps.CompareMode},
		Mode:       dispatch.Burst,
		Validate: func() error {
			if cfg.Host == "" {
				return ErrNoHost
			}
			return nil
		},
	}

	if cfg.Host != "" {
		adapter := NewHTTPAdapter(cfg.Host, cfg.Port, cfg.HTTPS, cfg.GetRequestTimeout())

		mon, err := monitor.New(adapter.Ping, monitor.Config{
			Name:         cfg.ID,
			Interval:     cfg.GetProbeInterval(),
			ProbeTimeout: cfg.GetRequestTimeout(),
			Clock:        deps.Clock,
		})
		if err != nil {
			return nil, fmt.Errorf("creating monitor for %s: %w", cfg.ID, err)
		}
		mon.SetLogger(deps.Logger)

		opts.Adapter = adapter
		opts.Monitor = mon
	} else {
		opts.Adapter = playout.AdapterFunc(func(context.Context, dispatch.Command) error {
			return ErrNoHost
		})
	}

	return playout.New(playout.WithDeps(opts, deps)), nil
}
