package refresh

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kortschak/hrs/cmd/internal/graph"
)

// manual is a Scheduler that runs scheduled functions only when
// advanced.
type manual struct {
	pending []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *manual) AfterFunc(_ time.Duration, f func()) Timer {
	t := &manualTimer{f: f}
	s.pending = append(s.pending, t)
	return t
}

// advance runs n intervals worth of scheduled functions.
func (s *manual) advance(n int) {
	for range n {
		due := s.pending
		s.pending = nil
		for _, t := range due {
			if !t.stopped {
				t.stopped = true
				t.f()
			}
		}
	}
}

// live returns the number of pending, unstopped timers.
func (s *manual) live() int {
	var n int
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

type harness struct {
	sched   *manual
	value   atomic.Int64
	points  []graph.Point
	repaint int
	loop    *Loop
}

func newHarness(interval time.Duration) *harness {
	h := &harness{sched: &manual{}}
	h.loop = NewLoop(interval, h.sched,
		func() int { return int(h.value.Load()) },
		func(p graph.Point) { h.points = append(h.points, p) },
		func() { h.repaint++ },
	)
	return h
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestLoopTicks(t *testing.T) {
	const n = 5
	h := newHarness(ms(10))
	h.value.Store(72)

	h.loop.Start()
	if len(h.points) != 1 {
		t.Fatalf("expected immediate tick: got %d points", len(h.points))
	}
	h.sched.advance(n - 1)

	want := []graph.Point{
		{Elapsed: ms(10), Value: 72},
		{Elapsed: ms(20), Value: 72},
		{Elapsed: ms(30), Value: 72},
		{Elapsed: ms(40), Value: 72},
		{Elapsed: ms(50), Value: 72},
	}
	if !reflect.DeepEqual(h.points, want) {
		t.Errorf("unexpected points:\ngot: %v\nwant:%v", h.points, want)
	}
	if h.repaint != n {
		t.Errorf("unexpected repaint count: got:%d want:%d", h.repaint, n)
	}
	if got := h.loop.Counter(); got != ms(50) {
		t.Errorf("unexpected counter: got:%v want:%v", got, ms(50))
	}
}

func TestLoopSkipsNonPositive(t *testing.T) {
	h := newHarness(ms(10))

	h.loop.Start()
	h.sched.advance(3)
	if len(h.points) != 0 || h.repaint != 0 {
		t.Errorf("unexpected plotting with zero value: points=%v repaint=%d", h.points, h.repaint)
	}
	if !h.loop.Running() || h.sched.live() != 1 {
		t.Errorf("expected loop to keep rescheduling: running=%t pending=%d", h.loop.Running(), h.sched.live())
	}

	h.value.Store(60)
	h.sched.advance(1)
	want := []graph.Point{{Elapsed: ms(10), Value: 60}}
	if !reflect.DeepEqual(h.points, want) {
		t.Errorf("unexpected points:\ngot: %v\nwant:%v", h.points, want)
	}
}

func TestLoopStop(t *testing.T) {
	h := newHarness(ms(10))
	h.value.Store(72)

	h.loop.Start()
	h.sched.advance(2)
	h.loop.Stop()
	if h.loop.Running() {
		t.Error("expected loop to be stopped")
	}
	if h.sched.live() != 0 {
		t.Errorf("expected no pending ticks after stop: got %d", h.sched.live())
	}

	h.value.Store(90)
	h.sched.advance(10)
	if len(h.points) != 3 {
		t.Errorf("unexpected number of points after stop: got:%d want:3", len(h.points))
	}
	if got := h.loop.Counter(); got != ms(30) {
		t.Errorf("unexpected retained counter: got:%v want:%v", got, ms(30))
	}
}

func TestLoopStaleTick(t *testing.T) {
	h := newHarness(ms(10))
	h.value.Store(72)

	h.loop.Start()
	stale := h.sched.pending[0]
	h.loop.Stop()

	// A callback that fired before cancellation must not plot.
	stale.f()
	if len(h.points) != 1 {
		t.Errorf("unexpected plot from stale tick: got %d points", len(h.points))
	}
	if h.sched.live() != 0 {
		t.Errorf("stale tick rescheduled: got %d pending", h.sched.live())
	}
}

func TestLoopResume(t *testing.T) {
	h := newHarness(ms(10))
	h.value.Store(80)

	h.loop.Resume(ms(120))
	h.sched.advance(1)
	want := []graph.Point{
		{Elapsed: ms(130), Value: 80},
		{Elapsed: ms(140), Value: 80},
	}
	if !reflect.DeepEqual(h.points, want) {
		t.Errorf("unexpected points:\ngot: %v\nwant:%v", h.points, want)
	}

	h.loop.Start()
	if got := h.loop.Counter(); got != ms(10) {
		t.Errorf("expected start to reset counter: got:%v want:%v", got, ms(10))
	}
	if h.sched.live() != 1 {
		t.Errorf("expected restart to replace pending tick: got %d pending", h.sched.live())
	}

	h.loop.Reset()
	if got := h.loop.Counter(); got != 0 {
		t.Errorf("unexpected counter after reset: got:%v", got)
	}
}
