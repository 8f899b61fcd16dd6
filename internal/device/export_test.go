// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package device

import "codeberg.org/oliverandrich/cloudcopy/internal/syncloop"

// SetPasswordReader replaces the terminal prompt.
func SetPasswordReader(fn func() ([]byte, error)) func() {
	prev := readPassword
	readPassword = fn
	return func() { readPassword = prev }
}

// SetClipboard replaces the system clipboard.
func SetClipboard(clip syncloop.Clipboard) func() {
	prev := newClipboard
	newClipboard = func() (syncloop.Clipboard, error) { return clip, nil }
	return func() { newClipboard = prev }
}
