package pipeline

import (
	"errors"
	"fmt"

	"github.com/LJTian/NewsLens/internal/collector"
)

var (
	// ErrSourceBusy is returned when a source already has a run in progress.
	ErrSourceBusy = errors.New("source run already in progress")
	// ErrListingUnavailable means no listing page of a source could be fetched.
	ErrListingUnavailable = errors.New("no listing page could be fetched")
	ErrUnknownSource      = errors.New("unknown source")
)

// PersistenceError wraps a failed upsert. The run's articles are still returned.
type PersistenceError struct {
	Source collector.SourceID
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Source, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SourceError marks a whole source run as failed.
type SourceError struct {
	Source collector.SourceID
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
