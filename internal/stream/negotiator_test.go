package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/scopeview/internal/events"
)

type fakeHandle struct {
	identity string
	minimal  bool

	mu    sync.Mutex
	stops int
}

func (h *fakeHandle) Identity() string { return h.identity }

func (h *fakeHandle) Settings() (TrackSettings, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stops > 0 {
		return TrackSettings{}, errors.New("handle stopped")
	}
	return TrackSettings{Live: true, Enabled: true, Width: 1920, Height: 1080, FrameRate: 30, SourceLabel: h.identity}, nil
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.stops++
	h.mu.Unlock()
}

func (h *fakeHandle) stopCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

type fakeOpener struct {
	mu       sync.Mutex
	attempts []Constraints
	failFull bool
	failAll  bool
	gates    map[string]chan struct{} // blocks opens for an identity until closed
	handles  []*fakeHandle
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{gates: make(map[string]chan struct{})}
}

func (o *fakeOpener) Open(_ context.Context, c Constraints) (Handle, error) {
	o.mu.Lock()
	o.attempts = append(o.attempts, c)
	gate := o.gates[c.Identity]
	failFull := o.failFull
	failAll := o.failAll
	o.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if failAll || (failFull && !c.Minimal()) {
		return nil, errors.New("device open denied")
	}

	h := &fakeHandle{identity: c.Identity, minimal: c.Minimal()}
	o.mu.Lock()
	o.handles = append(o.handles, h)
	o.mu.Unlock()
	return h, nil
}

func (o *fakeOpener) attemptCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.attempts)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAcquire_FullConstraintsFirst(t *testing.T) {
	opener := newFakeOpener()
	n := NewNegotiator(opener, events.New())

	if err := n.Acquire(context.Background(), "cam-a", ProfileStandard); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if got := opener.attemptCount(); got != 1 {
		t.Fatalf("Expected 1 open attempt, got %d", got)
	}
	c := opener.attempts[0]
	if c.Identity != "cam-a" || c.Width != 1920 || c.Height != 1080 || c.FrameRate != 30 {
		t.Errorf("Unexpected constraints on first attempt: %+v", c)
	}
	if n.Status().State != StateActive {
		t.Errorf("Expected state active, got %s", n.Status().State)
	}
	if n.Active() == nil {
		t.Error("Expected non-nil active handle")
	}
}

func TestAcquire_RetriesOnceWithMinimalConstraints(t *testing.T) {
	opener := newFakeOpener()
	opener.failFull = true
	n := NewNegotiator(opener, events.New())

	if err := n.Acquire(context.Background(), "cam-a", ProfileStandard); err != nil {
		t.Fatalf("Acquire should succeed via minimal fallback: %v", err)
	}

	if got := opener.attemptCount(); got != 2 {
		t.Fatalf("Expected exactly 2 open attempts, got %d", got)
	}
	if !opener.attempts[1].Minimal() {
		t.Errorf("Second attempt should carry minimal constraints, got %+v", opener.attempts[1])
	}
	if opener.attempts[1].Identity != "cam-a" {
		t.Errorf("Fallback must bind the same identity, got %q", opener.attempts[1].Identity)
	}
	if h, ok := n.Active().(*fakeHandle); !ok || !h.minimal {
		t.Error("Active handle should be the one opened with minimal constraints")
	}
}

func TestAcquire_SecondFailureIsTerminal(t *testing.T) {
	opener := newFakeOpener()
	opener.failAll = true
	n := NewNegotiator(opener, events.New())

	err := n.Acquire(context.Background(), "cam-a", ProfileStandard)
	if err == nil {
		t.Fatal("Expected acquisition fault")
	}

	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("Expected *Fault, got %T", err)
	}
	if fault.Code != FaultCodeAcquisition {
		t.Errorf("Expected code %s, got %s", FaultCodeAcquisition, fault.Code)
	}
	if got := opener.attemptCount(); got != 2 {
		t.Errorf("Expected exactly 2 attempts (no further automatic retry), got %d", got)
	}

	st := n.Status()
	if st.State != StateFailed {
		t.Errorf("Expected state failed, got %s", st.State)
	}
	if st.Fault == "" {
		t.Error("Expected a renderable fault message")
	}
	if n.Active() != nil {
		t.Error("Active handle must be nil after failure")
	}
}

func TestAcquire_FailureReleasesPreviousHandle(t *testing.T) {
	opener := newFakeOpener()
	n := NewNegotiator(opener, events.New())

	if err := n.Acquire(context.Background(), "cam-a", ProfileStandard); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first := opener.handles[0]

	opener.mu.Lock()
	opener.failAll = true
	opener.mu.Unlock()

	if err := n.Acquire(context.Background(), "cam-b", ProfileStandard); err == nil {
		t.Fatal("Expected acquisition fault")
	}

	if got := first.stopCount(); got != 1 {
		t.Errorf("Previous handle released %d times, want exactly 1", got)
	}
	if n.Active() != nil {
		t.Error("Active handle must be nil after failure")
	}
}

func TestAcquire_ReleasesOldOnlyAfterNewAcquired(t *testing.T) {
	opener := newFakeOpener()
	n := NewNegotiator(opener, events.New())

	if err := n.Acquire(context.Background(), "cam-a", ProfileStandard); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first := opener.handles[0]

	gate := make(chan struct{})
	opener.mu.Lock()
	opener.gates["cam-b"] = gate
	opener.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- n.Acquire(context.Background(), "cam-b", ProfileStandard)
	}()

	waitFor(t, func() bool { return opener.attemptCount() == 2 }, "second open never started")

	// The new open is still in flight: the old handle must still be held.
	if got := first.stopCount(); got != 0 {
		t.Fatalf("Old handle released before new one acquired (%d stops)", got)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}

	if got := first.stopCount(); got != 1 {
		t.Errorf("Old handle released %d times, want exactly 1", got)
	}
	active := n.Active()
	if active == nil || active.Identity() != "cam-b" {
		t.Errorf("Expected active handle bound to cam-b, got %v", active)
	}
}

func TestAcquire_OverlappingRequestsConvergeToLast(t *testing.T) {
	opener := newFakeOpener()
	n := NewNegotiator(opener, events.New())

	gateA := make(chan struct{})
	opener.mu.Lock()
	opener.gates["cam-a"] = gateA
	opener.mu.Unlock()

	resultA := make(chan error, 1)
	go func() {
		resultA <- n.Acquire(context.Background(), "cam-a", ProfileStandard)
	}()
	waitFor(t, func() bool { return opener.attemptCount() == 1 }, "first open never started")

	// B overtakes A while A's open is still in flight.
	if err := n.Acquire(context.Background(), "cam-b", ProfileStandard); err != nil {
		t.Fatalf("Acquire B failed: %v", err)
	}

	close(gateA)
	if err := <-resultA; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Superseded acquire should return ErrSuperseded, got %v", err)
	}

	active := n.Active()
	if active == nil || active.Identity() != "cam-b" {
		t.Fatalf("Expected active handle bound to cam-b, got %v", active)
	}

	// A's handle was acquired after being superseded and must be released
	// exactly once; B's handle must not be touched.
	var aHandle, bHandle *fakeHandle
	opener.mu.Lock()
	for _, h := range opener.handles {
		switch h.identity {
		case "cam-a":
			aHandle = h
		case "cam-b":
			bHandle = h
		}
	}
	opener.mu.Unlock()

	if aHandle == nil {
		t.Fatal("Superseded open should still have completed")
	}
	if got := aHandle.stopCount(); got != 1 {
		t.Errorf("Superseded handle released %d times, want exactly 1", got)
	}
	if got := bHandle.stopCount(); got != 0 {
		t.Errorf("Winning handle released %d times, want 0", got)
	}
}

func TestClose_DiscardsInFlightAcquisition(t *testing.T) {
	opener := newFakeOpener()
	n := NewNegotiator(opener, events.New())

	gate := make(chan struct{})
	opener.mu.Lock()
	opener.gates["cam-a"] = gate
	opener.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		result <- n.Acquire(context.Background(), "cam-a", ProfileStandard)
	}()
	waitFor(t, func() bool { return opener.attemptCount() == 1 }, "open never started")

	n.Close()
	close(gate)

	if err := <-result; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Expected ErrSuperseded after teardown, got %v", err)
	}

	opener.mu.Lock()
	h := opener.handles[0]
	opener.mu.Unlock()
	if got := h.stopCount(); got != 1 {
		t.Errorf("Handle acquired after teardown released %d times, want exactly 1", got)
	}
	if n.Status().State != StateReleased {
		t.Errorf("Expected state released, got %s", n.Status().State)
	}
}

func TestRefresh_ReacquiresCurrentPair(t *testing.T) {
	opener := newFakeOpener()
	n := NewNegotiator(opener, events.New())

	if err := n.Acquire(context.Background(), "cam-a", ProfileCompat); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first := opener.handles[0]

	if err := n.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := opener.attemptCount(); got != 2 {
		t.Fatalf("Expected 2 attempts after refresh, got %d", got)
	}
	c := opener.attempts[1]
	if c.Identity != "cam-a" || c.Width != ProfileCompat.Width || c.Height != ProfileCompat.Height {
		t.Errorf("Refresh changed the requested pair: %+v", c)
	}
	if got := first.stopCount(); got != 1 {
		t.Errorf("Refresh should swap-and-release the old handle once, got %d stops", got)
	}

	st := n.Status()
	if st.State != StateActive || st.Identity != "cam-a" || st.Profile.Name != ProfileCompat.Name {
		t.Errorf("Refresh must not change user-visible settings: %+v", st)
	}
}

func TestRefresh_WithoutSelection(t *testing.T) {
	n := NewNegotiator(newFakeOpener(), events.New())

	err := n.Refresh(context.Background())
	var fault *Fault
	if !errors.As(err, &fault) || fault.Code != FaultCodeDeviceNotFound {
		t.Fatalf("Expected DEVICE_NOT_FOUND fault, got %v", err)
	}
}

func TestNegotiator_PublishesStateEvents(t *testing.T) {
	bus := events.New()
	states := make(chan string, 8)
	unsub := bus.Subscribe(func(e events.StreamStateChangedEvent) {
		states <- e.State
	})
	defer unsub()

	opener := newFakeOpener()
	n := NewNegotiator(opener, bus)
	if err := n.Acquire(context.Background(), "cam-a", ProfileStandard); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if got := <-states; got != "requesting" {
		t.Errorf("First event = %s, want requesting", got)
	}
	if got := <-states; got != "active" {
		t.Errorf("Second event = %s, want active", got)
	}
}
