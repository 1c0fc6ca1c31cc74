package sync

import (
	gosync "sync"

	"freelance-marketplace/internal/ledger"
)

// Session holds the per-account view-layer state: the active account,
// its registration record and the job snapshot. A session is created on
// login and discarded when the account changes, which forces a full
// rebuild. The registration record and the snapshot are both read by
// concurrent requests and share the session lock.
type Session struct {
	Account string

	mu       gosync.RWMutex
	user     ledger.User
	snapshot []ledger.Job
}

// NewSession creates a session for an account.
func NewSession(account string, user ledger.User) *Session {
	return &Session{
		Account: account,
		user:    user,
	}
}

// User returns the account's registration record.
func (s *Session) User() ledger.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser replaces the registration record, after a registration
// confirms.
func (s *Session) SetUser(user ledger.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// Jobs returns a copy of the current snapshot in ledger order.
func (s *Session) Jobs() []ledger.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]ledger.Job, len(s.snapshot))
	copy(jobs, s.snapshot)
	return jobs
}

// Job looks up a job in the snapshot by id.
func (s *Session) Job(id int64) (ledger.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.snapshot {
		if job.ID == id {
			return job, true
		}
	}
	return ledger.Job{}, false
}

// replaceSnapshot swaps in a fully-loaded snapshot. The previous
// snapshot is never partially overwritten; callers must only pass a
// complete reload.
func (s *Session) replaceSnapshot(jobs []ledger.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = jobs
}
