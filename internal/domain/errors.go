package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a candidate id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery marks caller input that cannot be served.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRefreshInProgress is returned by synchronous refreshes that lose the single-flight race.
	ErrRefreshInProgress = errors.New("refresh already running")
)

// FetchError reports a network or HTTP status failure for one URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports one malformed row, feed or page.
type ParseError struct {
	Source string
	Item   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("parse %s (%s): %v", e.Source, e.Item, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports a missing or unusable configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
