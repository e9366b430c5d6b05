package prefs

import (
	"sync"
	"time"

	"github.com/smazurov/scopeview/internal/logging"
)

// Phase tracks where a device's preference lifecycle currently sits.
// Saves are only honored in PhaseReady; anything arriving earlier is
// feedback from applying the loaded state, not a user edit.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSettling
	PhaseReady
)

// String returns the phase as a lowercase string.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSettling:
		return "settling"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

const defaultSettleWindow = 750 * time.Millisecond

// Service mediates between live preference updates and the store. It
// loads state when a device is selected and gates saves until the
// loaded state has been applied and a settle window has elapsed.
type Service struct {
	store  Store
	logger logging.Logger
	settle time.Duration

	mu       sync.Mutex
	identity string
	phase    Phase
	timer    *time.Timer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSettleWindow overrides the delay between load completion and
// saves being honored again.
func WithSettleWindow(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.settle = d
	}
}

// NewService creates a preference service backed by the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: logging.GetLogger("prefs"),
		settle: defaultSettleWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginLoad starts the preference lifecycle for a newly selected
// device. It returns the stored state (zero value when none exists)
// and whether a stored entry was found. Saves stay disabled until the
// settle window after this call expires.
func (s *Service) BeginLoad(identity string) (State, bool) {
	s.mu.Lock()
	s.identity = identity
	s.phase = PhaseLoading
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	state, exists := s.store.Get(identity)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != identity {
		// Another device was selected while we were loading.
		return state, exists
	}
	s.phase = PhaseSettling
	s.timer = time.AfterFunc(s.settle, func() { s.settled(identity) })
	s.logger.Debug("Preferences loaded", "identity", identity, "exists", exists)
	return state, exists
}

func (s *Service) settled(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != identity || s.phase != PhaseSettling {
		return
	}
	s.phase = PhaseReady
	s.logger.Debug("Preferences settled", "identity", identity)
}

// Save persists state for the given device. Writes are dropped while a
// load is in flight or settling, and for devices other than the one
// currently loaded. Returns whether the write was accepted.
func (s *Service) Save(identity string, state State) bool {
	s.mu.Lock()
	accepted := s.identity == identity && s.phase == PhaseReady
	s.mu.Unlock()

	if !accepted {
		s.logger.Debug("Preference save dropped", "identity", identity, "phase", s.Phase().String())
		return false
	}

	if err := s.store.Put(identity, state); err != nil {
		s.logger.Warn("Failed to persist preferences", "identity", identity, "error", err)
	}
	return true
}

// Current returns the stored state for the tracked device. Callers that
// update a subset of fields start from this so untouched fields survive.
func (s *Service) Current() (State, bool) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()
	if identity == "" {
		return State{}, false
	}
	return s.store.Get(identity)
}

// Phase returns the current lifecycle phase.
func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Identity returns the device the service is currently tracking.
func (s *Service) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}
