package playout

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

func ms(n int64) time.Time {
	return time.UnixMilli(n)
}

func historyTimes(h *History) []int64 {
	var out []int64
	for _, e := range h.Entries() {
		out = append(out, e.Time.UnixMilli())
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newHistory(times ...int64) *History {
	h := &History{}
	for _, t := range times {
		h.Record(timeline.Empty(ms(t)), ms(t))
	}
	return h
}

func TestHistory_RecordKeepsOrderAndReplaces(t *testing.T) {
	h := newHistory(300, 100, 200)

	replacement := timeline.NewSnapshot(ms(200), timeline.Object{ID: "x", Layer: "L"})
	h.Record(replacement, ms(200))

	if got := historyTimes(h); !equalInts(got, []int64{100, 200, 300}) {
		t.Errorf("times = %v, want [100 200 300]", got)
	}
	e, ok := h.Before(ms(300))
	if !ok || len(e.Snapshot.Layers) != 1 {
		t.Errorf("entry at 200 was not replaced: %+v", e)
	}
}

func TestHistory_BeforeIsStrict(t *testing.T) {
	h := newHistory(100, 200)

	tests := []struct {
		name   string
		at     int64
		want   int64
		wantOK bool
	}{
		{"before first", 50, 0, false},
		{"exactly first", 100, 0, false},
		{"between", 150, 100, true},
		{"exactly second", 200, 100, true},
		{"after last", 500, 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := h.Before(ms(tt.at))
			if ok != tt.wantOK {
				t.Fatalf("Before(%d) ok = %v, want %v", tt.at, ok, tt.wantOK)
			}
			if ok && e.Time.UnixMilli() != tt.want {
				t.Errorf("Before(%d) = %d, want %d", tt.at, e.Time.UnixMilli(), tt.want)
			}
		})
	}
}

func TestHistory_DropFrom(t *testing.T) {
	h := newHistory(100, 200, 300)

	if n := h.DropFrom(ms(200)); n != 2 {
		t.Errorf("DropFrom() = %d, want 2", n)
	}
	if got := historyTimes(h); !equalInts(got, []int64{100}) {
		t.Errorf("times = %v, want [100]", got)
	}
}

func TestHistory_PruneBeforeKeepsStateInEffect(t *testing.T) {
	tests := []struct {
		name  string
		times []int64
		at    int64
		want  []int64
		n     int
	}{
		{"nothing older", []int64{100, 200}, 50, []int64{100, 200}, 0},
		{"single older kept", []int64{100, 200}, 150, []int64{100, 200}, 0},
		{"keeps newest older", []int64{100, 200, 300}, 250, []int64{200, 300}, 1},
		{"exact boundary", []int64{100, 200, 300}, 300, []int64{200, 300}, 1},
		{"all older", []int64{100, 200, 300}, 1000, []int64{300}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHistory(tt.times...)
			if n := h.PruneBefore(ms(tt.at)); n != tt.n {
				t.Errorf("PruneBefore() = %d, want %d", n, tt.n)
			}
			if got := historyTimes(h); !equalInts(got, tt.want) {
				t.Errorf("times = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistory_CleanUp(t *testing.T) {
	h := newHistory(100, 200, 300, 400)

	if n := h.CleanUp(ms(250), ms(400)); n != 2 {
		t.Errorf("CleanUp() = %d, want 2", n)
	}
	if got := historyTimes(h); !equalInts(got, []int64{200, 300}) {
		t.Errorf("times = %v, want [200 300]", got)
	}

	if n := h.CleanUp(time.Time{}, time.Time{}); n != 0 {
		t.Errorf("CleanUp(zero, zero) = %d, want 0", n)
	}
}
