// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package clipboard reads and writes the text clipboard.
package clipboard

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported means no clipboard utility was found for this platform.
var ErrUnsupported = errors.New("no clipboard utility available")

// System is the operating system clipboard. On Linux it needs xclip, xsel
// or wl-clipboard on the PATH.
type System struct{}

// NewSystem returns the OS clipboard, or ErrUnsupported when the platform
// tooling is missing.
func NewSystem() (System, error) {
	if clipboard.Unsupported {
		return System{}, ErrUnsupported
	}
	return System{}, nil
}

// Read returns the current clipboard text.
func (System) Read() (string, error) {
	return clipboard.ReadAll()
}

// Write replaces the clipboard text.
func (System) Write(text string) error {
	return clipboard.WriteAll(text)
}

// Memory is an in-process clipboard for tests and headless runs.
type Memory struct {
	text    string
	readErr error
	writes  int
	mu      sync.Mutex
}

// NewMemory creates a clipboard holding initial.
func NewMemory(initial string) *Memory {
	return &Memory{text: initial}
}

// Read returns the text, or the error set by FailReads.
func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", m.readErr
	}
	return m.text, nil
}

// Write stores text and counts the call.
func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes++
	return nil
}

// Copy simulates the user copying text.
func (m *Memory) Copy(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}

// FailReads makes subsequent reads return err until called with nil.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Writes returns how often Write was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
