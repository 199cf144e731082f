package secrets

import "time"

// SetClock replaces the cache clock
func (s *CredentialStore) SetClock(now func() time.Time) {
	s.now = now
}
