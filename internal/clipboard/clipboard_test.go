// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package clipboard_test

import (
	"errors"
	"testing"

	"codeberg.org/oliverandrich/cloudcopy/internal/clipboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := clipboard.NewMemory("initial")

	text, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "initial", text)

	m.Copy("copied")
	require.NoError(t, m.Write("written"))

	text, err = m.Read()
	require.NoError(t, err)
	assert.Equal(t, "written", text)
	assert.Equal(t, 1, m.Writes())
}

func TestMemory_FailReads(t *testing.T) {
	m := clipboard.NewMemory("x")
	boom := errors.New("locked")

	m.FailReads(boom)
	_, err := m.Read()
	assert.ErrorIs(t, err, boom)

	m.FailReads(nil)
	_, err = m.Read()
	assert.NoError(t, err)
}
