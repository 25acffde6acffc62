package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned instead of calling the analyzer on an empty article.
	ErrEmptyContent = errors.New("article has no content")
	// ErrInvalidAnalysis wraps every out-of-contract analyzer response.
	ErrInvalidAnalysis = errors.New("analysis out of contract")
	ErrNoAnalyzer      = errors.New("no analyzer configured")
)

// EnrichmentError reports a failed or rejected analysis of one article.
type EnrichmentError struct {
	URL string
	Err error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich %s: %v", e.URL, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
