package storage

import (
	"context"
	"errors"
	"fmt"

	"robokin/internal/dataprocessing"
)

// Sink receives the result of a pipeline run
type Sink interface {
	Write(ctx context.Context, result *dataprocessing.Result) error
	Close() error
}

// NamedSink labels a sink in error messages
type NamedSink struct {
	Name string
	Sink Sink
}

// MultiSink writes a result to every sink in order. A failing sink does not
// stop the others; all failures are joined.
type MultiSink struct {
	sinks []NamedSink
}

// NewMultiSink creates a fan-out sink. Nil sinks are skipped.
func NewMultiSink(sinks ...NamedSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s.Sink != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of wrapped sinks
func (m *MultiSink) Len() int { return len(m.sinks) }

// Write implements Sink
func (m *MultiSink) Write(ctx context.Context, result *dataprocessing.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := s.Sink.Write(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
