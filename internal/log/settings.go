// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"io"
	"os"
)

type contextKeyValues struct {
	key    string
	values []string
}

type settings struct {
	writer  io.Writer
	level   *Level
	caller  bool
	context []contextKeyValues
}

func newSettings(options []Option) (s settings) {
	for _, option := range options {
		option(&s)
	}
	return s
}

func (s *settings) setDefaults() {
	if s.writer == nil {
		s.writer = os.Stdout
	}

	if s.level == nil {
		level := Info
		s.level = &level
	}
}

// mergeWith sets empty fields of the receiving settings
// with the corresponding fields of the other settings.
// Context key-values are appended after the other's key-values.
func (s *settings) mergeWith(other settings) {
	if s.writer == nil {
		s.writer = other.writer
	}

	if s.level == nil && other.level != nil {
		level := *other.level
		s.level = &level
	}

	if !s.caller {
		s.caller = other.caller
	}

	s.context = append(copyContext(other.context), s.context...)
}

// patchWith overrides the receiving settings with the non-empty
// fields of the other settings.
func (s *settings) patchWith(other settings) {
	if other.writer != nil {
		s.writer = other.writer
	}

	if other.level != nil && *other.level != DoNotChange {
		level := *other.level
		s.level = &level
	}

	if other.caller {
		s.caller = true
	}

	if len(other.context) > 0 {
		s.context = copyContext(other.context)
	}
}

func copyContext(context []contextKeyValues) (copied []contextKeyValues) {
	if context == nil {
		return nil
	}

	copied = make([]contextKeyValues, len(context))
	for i, kvs := range context {
		copied[i] = contextKeyValues{
			key:    kvs.key,
			values: make([]string, len(kvs.values)),
		}
		copy(copied[i].values, kvs.values)
	}
	return copied
}
