package token

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Efrain290493/gft/internal/faults"
	"github.com/Efrain290493/gft/internal/tokenstore"
)

type fakeStore struct {
	records []tokenstore.Record
	found   []bool
	errs    []error
	calls   int
}

func (f *fakeStore) Get(ctx context.Context) (tokenstore.Record, bool, error) {
	i := f.calls
	if i >= len(f.records) {
		i = len(f.records) - 1
	}
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.records[i], f.found[i], err
}

type fakeInvoker struct {
	err   error
	calls int
}

func (f *fakeInvoker) Invoke(ctx context.Context) error {
	f.calls++
	return f.err
}

func newTestManager(store Store, inv Invoker, now time.Time) (*Manager, *[]time.Duration) {
	m := NewManager(store, inv)
	m.now = func() time.Time { return now }
	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }
	return m, &slept
}

func validRecord(now time.Time) tokenstore.Record {
	return tokenstore.Record{
		AccessToken: "cached-token",
		ExpiresIn:   sql.NullInt64{Int64: 3600, Valid: true},
		IssuedAt:    sql.NullTime{Time: now, Valid: true},
	}
}

func TestGetValidTokenReturnsCached(t *testing.T) {
	now := time.Now()
	store := &fakeStore{records: []tokenstore.Record{validRecord(now)}, found: []bool{true}}
	inv := &fakeInvoker{}
	m, _ := newTestManager(store, inv, now)

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", tok)
	assert.Zero(t, inv.calls)
}

func TestGetValidTokenNoExpiryInfoSkipsRefresh(t *testing.T) {
	store := &fakeStore{
		records: []tokenstore.Record{{AccessToken: "eternal"}},
		found:   []bool{true},
	}
	inv := &fakeInvoker{}
	m, _ := newTestManager(store, inv, time.Now())

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eternal", tok)
	assert.Zero(t, inv.calls)
}

func TestGetValidTokenRefreshesExpired(t *testing.T) {
	now := time.Now()
	expired := tokenstore.Record{
		AccessToken: "stale",
		ExpiresIn:   sql.NullInt64{Int64: 60, Valid: true},
		IssuedAt:    sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
	}
	fresh := tokenstore.Record{AccessToken: "fresh"}
	store := &fakeStore{
		records: []tokenstore.Record{expired, fresh},
		found:   []bool{true, true},
	}
	inv := &fakeInvoker{}
	m, slept := newTestManager(store, inv, now)

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, inv.calls)
	// one initial wait after the invocation, token found on first poll
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
}

func TestGetValidTokenRefreshesWhenAbsent(t *testing.T) {
	store := &fakeStore{
		records: []tokenstore.Record{{}, {}, {AccessToken: "late"}},
		found:   []bool{false, false, true},
	}
	inv := &fakeInvoker{}
	m, slept := newTestManager(store, inv, time.Now())

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", tok)
	assert.Equal(t, []time.Duration{2 * time.Second, 1 * time.Second}, *slept)
}

func TestGetValidTokenFailsWhenTokenNeverAppears(t *testing.T) {
	store := &fakeStore{
		records: []tokenstore.Record{{}, {}, {}, {}},
		found:   []bool{false, false, false, false},
	}
	inv := &fakeInvoker{}
	m, slept := newTestManager(store, inv, time.Now())

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.KindTokenRefresh, faults.KindOf(err))
	assert.Contains(t, err.Error(), "token not found after invocation and retries")
	assert.Equal(t, 1, inv.calls)
	// initial wait plus pauses between the 3 poll attempts
	assert.Equal(t, []time.Duration{2 * time.Second, 1 * time.Second, 1 * time.Second}, *slept)
	// 1 validity read + 3 polls
	assert.Equal(t, 4, store.calls)
}

func TestGetValidTokenInvokerFailure(t *testing.T) {
	store := &fakeStore{records: []tokenstore.Record{{}}, found: []bool{false}}
	inv := &fakeInvoker{err: errors.New("status=500")}
	m, slept := newTestManager(store, inv, time.Now())

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.KindTokenRefresh, faults.KindOf(err))
	assert.Empty(t, *slept)
}

func TestGetValidTokenStoreReadError(t *testing.T) {
	store := &fakeStore{
		records: []tokenstore.Record{{}},
		found:   []bool{false},
		errs:    []error{errors.New("connection reset")},
	}
	m, _ := newTestManager(store, &fakeInvoker{}, time.Now())

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.KindTokenRefresh, faults.KindOf(err))
}
