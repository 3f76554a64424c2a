// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Logger_levelFiltering(t *testing.T) {
	t.Parallel()

	buffer := bytes.NewBuffer(nil)
	logger := New(SetWriter(buffer), SetLevel(Warn))

	logger.Info("filtered out")
	assert.Empty(t, buffer.String())

	logger.Warn("kept")
	assert.Contains(t, buffer.String(), "kept")
}

func Test_Logger_context(t *testing.T) {
	t.Parallel()

	buffer := bytes.NewBuffer(nil)
	logger := New(SetWriter(buffer), SetLevel(Trace),
		AddContext("pkg", "babe"))

	child := logger.New(AddContext("module", "verifier"))
	child.Debugf("slot %d", 7)

	line := buffer.String()
	assert.Contains(t, line, "slot 7")
	assert.Contains(t, line, "pkg=babe")
	assert.Contains(t, line, "module=verifier")
}

func Test_Logger_Patch(t *testing.T) {
	t.Parallel()

	buffer := bytes.NewBuffer(nil)
	logger := New(SetWriter(buffer), SetLevel(Error))

	logger.Patch(SetLevel(Debug))
	logger.Debug("now visible")
	assert.Contains(t, buffer.String(), "now visible")
}

func Test_ParseLevel(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		s     string
		level Level
		err   error
	}{
		"trace":        {s: "trace", level: Trace},
		"short error":  {s: "EROR", level: Error},
		"unrecognised": {s: "verbose", err: ErrLevelNotRecognised},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			level, err := ParseLevel(testCase.s)
			if testCase.err != nil {
				assert.ErrorIs(t, err, testCase.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.level, level)
		})
	}
}
