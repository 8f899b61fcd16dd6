// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "simple message without event name",
			eventName: "",
			data:      "hello",
			expected:  "data: hello\n\n",
		},
		{
			name:      "simple message with event name",
			eventName: "copy",
			data:      "2025-01-01T00:00:00Z",
			expected:  "event: copy\ndata: 2025-01-01T00:00:00Z\n\n",
		},
		{
			name:      "multiline data",
			eventName: "",
			data:      "line1\nline2\nline3",
			expected:  "data: line1\ndata: line2\ndata: line3\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatEvent(tt.eventName, tt.data)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHeartbeat(t *testing.T) {
	assert.Equal(t, ": heartbeat\n\n", Heartbeat)
	assert.Equal(t, ':', rune(Heartbeat[0]))
}

func TestReader(t *testing.T) {
	stream := FormatEvent(EventConnected, "ok") +
		Heartbeat +
		FormatEvent(EventCopy, "2025-01-01T00:00:00Z") +
		FormatEvent("", "line1\nline2")

	r := NewReader(strings.NewReader(stream))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Name: EventConnected, Data: "ok"}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Name: EventCopy, Data: "2025-01-01T00:00:00Z"}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Data: "line1\nline2"}, ev)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_OnlyComments(t *testing.T) {
	r := NewReader(strings.NewReader(Heartbeat + Heartbeat))

	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
