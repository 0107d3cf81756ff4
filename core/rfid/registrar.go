package rfid

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultReadTimeout is how long a registration read waits for a card.
const DefaultReadTimeout = 30 * time.Second

// ErrReadInProgress means a registration read is already waiting for a card.
var ErrReadInProgress = errors.New("card read already in progress")

// Registrar tracks at most one pending "present a card to register it"
// request. While a read is pending, the next scanned card resolves it
// instead of dispatching.
type Registrar struct {
	mu        sync.Mutex
	sessionID string
	pending   chan string
}

// NewRegistrar creates an empty Registrar.
func NewRegistrar() *Registrar {
	return &Registrar{}
}

// Begin opens a registration read and returns its session id plus the
// channel the scanned card id will arrive on. Only one read can be open.
func (r *Registrar) Begin() (string, <-chan string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		return "", nil, ErrReadInProgress
	}

	r.sessionID = uuid.NewString()
	r.pending = make(chan string, 1)
	return r.sessionID, r.pending, nil
}

// Cancel closes the read with the given session id, typically on timeout.
func (r *Registrar) Cancel(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == sessionID {
		r.sessionID = ""
		r.pending = nil
	}
}

// Resolve delivers cardID to the pending read, if any, and reports whether
// one consumed it.
func (r *Registrar) Resolve(cardID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return false
	}
	r.pending <- cardID
	r.sessionID = ""
	r.pending = nil
	return true
}
