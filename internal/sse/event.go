// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Event names used on /events.
const (
	EventConnected = "connected"
	EventCopy      = "copy"
	EventShutdown  = "shutdown"
)

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"

// Event is one decoded server-sent event.
type Event struct {
	Name string
	Data string
}

// FormatEvent formats a message as an SSE event with optional event name.
// Multiline content is properly prefixed with "data:".
func FormatEvent(eventName, data string) string {
	var sb strings.Builder

	if eventName != "" {
		sb.WriteString(fmt.Sprintf("event: %s\n", eventName))
	}

	lines := strings.Split(data, "\n")
	for _, line := range lines {
		sb.WriteString(fmt.Sprintf("data: %s\n", line))
	}

	sb.WriteString("\n") // Empty line marks end of event
	return sb.String()
}

// Reader decodes an event stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps an event stream body.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next blocks until a complete event arrives. Comments are skipped.
// It returns io.EOF when the stream ends cleanly.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if hasData || ev.Name != "" {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
