package token

import (
	"context"
	"log"
	"time"

	"github.com/Efrain290493/gft/internal/faults"
	"github.com/Efrain290493/gft/internal/tokenstore"
)

// Store is the read side of the token record the manager depends on.
type Store interface {
	Get(ctx context.Context) (tokenstore.Record, bool, error)
}

// Invoker triggers the out-of-band token-issuing operation. The issued token
// lands in the store asynchronously; the manager polls for it afterwards.
type Invoker interface {
	Invoke(ctx context.Context) error
}

const (
	pollAttempts = 3
	// The issuer writes the token to the store on its own schedule; give it a
	// head start before the first poll, then short pauses between retries.
	initialPollWait = 2 * time.Second
	pollRetryWait   = 1 * time.Second
)

// Manager decides whether the cached token is still usable and refreshes it
// through the invoker when not. Many processes may refresh concurrently;
// duplicate refreshes are tolerated and the last store writer wins.
type Manager struct {
	store   Store
	invoker Invoker

	now   func() time.Time
	sleep func(time.Duration)
}

func NewManager(store Store, invoker Invoker) *Manager {
	return &Manager{
		store:   store,
		invoker: invoker,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// GetValidToken returns a bearer token usable for at least the safety margin,
// refreshing the singleton record when it is absent or stale.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	rec, found, err := m.store.Get(ctx)
	if err != nil {
		return "", faults.Wrap(faults.KindTokenRefresh, err, "read token record")
	}

	if found && rec.ValidAt(m.now()) {
		return rec.AccessToken, nil
	}
	if found {
		log.Printf("[token] cached token expired, refreshing")
	} else {
		log.Printf("[token] no token record found, refreshing")
	}

	return m.refresh(ctx)
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	if err := m.invoker.Invoke(ctx); err != nil {
		return "", faults.Wrap(faults.KindTokenRefresh, err, "invoke token issuer")
	}

	m.sleep(initialPollWait)

	for attempt := 1; attempt <= pollAttempts; attempt++ {
		rec, found, err := m.store.Get(ctx)
		if err != nil {
			log.Printf("[token] store read failed on poll attempt %d: %v", attempt, err)
		} else if found && rec.AccessToken != "" {
			log.Printf("[token] new token obtained (attempt %d)", attempt)
			return rec.AccessToken, nil
		}
		if attempt < pollAttempts {
			m.sleep(pollRetryWait)
		}
	}

	return "", faults.New(faults.KindTokenRefresh, "token not found after invocation and retries")
}
