package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestCommandPoint(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name       string
		err        error
		wantResult string
		wantError  bool
	}{
		{"success", nil, "ok", false},
		{"failure", errors.New("E2"), "error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := commandPoint("cam-1", "preset", 50*time.Millisecond, 2*time.Millisecond, tt.err, at)

			if p.Name() != MeasurementCommand {
				t.Errorf("Name() = %q, want %q", p.Name(), MeasurementCommand)
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}

			tg := tags(p)
			if tg["device_id"] != "cam-1" || tg["kind"] != "preset" || tg["result"] != tt.wantResult {
				t.Errorf("tags = %v", tg)
			}

			f := fields(p)
			if f["lag_ms"] != 50.0 || f["duration_ms"] != 2.0 {
				t.Errorf("fields = %v, want lag_ms=50 duration_ms=2", f)
			}
			if _, ok := f["error"]; ok != tt.wantError {
				t.Errorf("error field present = %v, want %v", ok, tt.wantError)
			}
		})
	}
}

func TestConnectionPoint(t *testing.T) {
	at := time.Now()

	up := connectionPoint("cam-1", true, at)
	if up.Name() != MeasurementConnection {
		t.Errorf("Name() = %q, want %q", up.Name(), MeasurementConnection)
	}
	if got := fields(up)["connected"]; got != int64(1) {
		t.Errorf("connected = %v (%T), want 1", got, got)
	}

	down := connectionPoint("cam-1", false, at)
	if got := fields(down)["connected"]; got != int64(0) {
		t.Errorf("connected = %v (%T), want 0", got, got)
	}
}

func TestRecorder_NotConnectedIsNoop(t *testing.T) {
	c := &Client{}

	// None of these may touch the nil write API.
	c.RecordCommand("cam-1", "preset", 0, 0, nil)
	c.RecordSlowCommand("cam-1", "preset")
	c.RecordConnection("cam-1", true)
	c.RecordReconcile("cam-1", 2)
}
