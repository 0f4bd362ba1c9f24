package cache

import "errors"

var (
	// ErrAmbiguousEntry is returned by Find when more than one row matches a
	// cache key, meaning the uniqueness invariant of the store is broken.
	ErrAmbiguousEntry = errors.New("multiple cache entries for the same key")

	// ErrEmptyURL is returned by operations that received a blank article URL.
	ErrEmptyURL = errors.New("article url is required")
)
