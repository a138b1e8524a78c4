package storefakes

import (
	"context"
	"sync"

	"github.com/rulehub/rulehub-client/authsession/sessionstore"
)

var _ sessionstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store double with injectable failures and call
// counters, so tests can assert exactly which slots an operation touched.
type FakeStore struct {
	lock sync.Mutex

	session *sessionstore.Session
	pending string

	SaveSessionErr  error
	LoadSessionErr  error
	ClearSessionErr error
	SavePendingErr  error
	LoadPendingErr  error
	ClearPendingErr error

	SaveSessionCalls  int
	ClearSessionCalls int
	SavePendingCalls  int
	ClearPendingCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Seed installs a persisted session without counting as a write.
func (f *FakeStore) Seed(session sessionstore.Session) {
	f.lock.Lock()
	defer f.lock.Unlock()
	copied := session
	f.session = &copied
}

// StoredSession returns a copy of the persisted session, nil when none.
func (f *FakeStore) StoredSession() *sessionstore.Session {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.session == nil {
		return nil
	}
	copied := *f.session
	return &copied
}

// PendingState returns the currently stored nonce.
func (f *FakeStore) PendingState() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.pending
}

// Writes reports the total number of mutating calls made against the store.
func (f *FakeStore) Writes() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.SaveSessionCalls + f.ClearSessionCalls + f.SavePendingCalls + f.ClearPendingCalls
}

func (f *FakeStore) SaveSession(ctx context.Context, session sessionstore.Session) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.SaveSessionCalls++
	if f.SaveSessionErr != nil {
		return f.SaveSessionErr
	}
	copied := session
	f.session = &copied
	return nil
}

func (f *FakeStore) LoadSession(ctx context.Context) (*sessionstore.Session, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.LoadSessionErr != nil {
		return nil, f.LoadSessionErr
	}
	if f.session == nil {
		return nil, nil
	}
	copied := *f.session
	return &copied, nil
}

func (f *FakeStore) ClearSession(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.ClearSessionCalls++
	if f.ClearSessionErr != nil {
		return f.ClearSessionErr
	}
	f.session = nil
	return nil
}

func (f *FakeStore) SavePendingState(ctx context.Context, nonce string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.SavePendingCalls++
	if f.SavePendingErr != nil {
		return f.SavePendingErr
	}
	f.pending = nonce
	return nil
}

func (f *FakeStore) LoadPendingState(ctx context.Context) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.LoadPendingErr != nil {
		return "", f.LoadPendingErr
	}
	return f.pending, nil
}

func (f *FakeStore) ClearPendingState(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.ClearPendingCalls++
	if f.ClearPendingErr != nil {
		return f.ClearPendingErr
	}
	f.pending = ""
	return nil
}
