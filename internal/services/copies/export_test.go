// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package copies

import "time"

// SetClock replaces the time source.
func (s *Service) SetClock(fn func() time.Time) {
	s.now = fn
}
