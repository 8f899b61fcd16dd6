// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import "time"

// SetTokenGenerator replaces the random token source.
func (s *Service) SetTokenGenerator(fn func() (string, error)) {
	s.newToken = fn
}

// SetClock replaces the time source.
func (s *Service) SetClock(fn func() time.Time) {
	s.now = fn
}
