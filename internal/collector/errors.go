package collector

import (
	"errors"
	"fmt"
)

// ErrNoContent marks a detail page from which no article body could be read.
var ErrNoContent = errors.New("no extractable content")

// FetchError is returned by the transport for network and status failures.
// StatusCode is 0 when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError means markup was retrieved but a required field was not found.
type ExtractionError struct {
	URL    string
	Source SourceID
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.URL, e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Failure records one unit of work that was dropped or left incomplete.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// NewFailure builds a Failure from an error.
func NewFailure(url string, err error) Failure {
	if err == nil {
		return Failure{URL: url}
	}
	return Failure{URL: url, Reason: err.Error(), Err: err}
}
