package ptz

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

func TestNewDevice_RequiresHost(t *testing.T) {
	dev, err := NewDevice(config.DeviceConfig{ID: "cam1", Kind: config.DeviceKindPanasonicPTZ}, playout.Deps{})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	err = dev.Init(context.Background())
	if !errors.Is(err, playout.ErrInitFailed) || !errors.Is(err, ErrNoHost) {
		t.Errorf("Init() error = %v, want ErrInitFailed wrapping ErrNoHost", err)
	}
	if dev.Kind() != timeline.KindPanasonicPTZ {
		t.Errorf("Kind() = %q", dev.Kind())
	}
}

func TestNewDevice_DrivesCamera(t *testing.T) {
	cam := &fakeCamera{reply: "p1"}
	srv := httptest.NewServer(cam)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())

	clock := clockwork.NewFakeClockAt(t0)
	dev, err := NewDevice(config.DeviceConfig{
		ID:             "cam1",
		Kind:           config.DeviceKindPanasonicPTZ,
		Host:           u.Hostname(),
		Port:           port,
		ProbeInterval:  60,
		RequestTimeout: 2,
	}, playout.Deps{
		Mapping: timeline.StaticMapping(testMapping()),
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	ctx := context.Background()
	if err := dev.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer dev.Terminate(ctx) //nolint:errcheck // Test cleanup

	if st := dev.Status(); !st.HasConnection || !st.Connected || !st.OK {
		t.Errorf("Status() = %+v, want connected", st)
	}

	dev.HandleState(ctx, timeline.NewSnapshot(t0, obj("cam_preset", "p", map[string]any{"preset": 2})))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range cam.received() {
			if c == "#R02" {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("camera never received #R02, got %v", cam.received())
}
