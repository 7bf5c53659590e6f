package errors

import (
	"context"
	"errors"
)

// Kind classifies an error so that callers can distinguish failure causes
// programmatically instead of matching on message text.
type Kind string

const (
	// KindResolution means identity search failed or returned nothing usable.
	KindResolution Kind = "resolution"
	// KindScrape means a single source failed. Isolated, non-fatal to an investigation.
	KindScrape Kind = "scrape"
	// KindSynthesis means persona building failed. Fatal to the investigation.
	KindSynthesis Kind = "synthesis"
	// KindNotFound means an unknown investigation or session id was referenced.
	KindNotFound Kind = "not_found"
	// KindValidation means a required request field was missing or malformed.
	KindValidation Kind = "validation"
	// KindDeadline means a provider call exceeded its stage deadline.
	KindDeadline Kind = "deadline"
)

type kindedError struct {
	kind Kind
	err  error
}

func (e kindedError) Error() string {
	return e.err.Error()
}

func (e kindedError) Unwrap() error {
	return e.err
}

// WithKind tags err with a Kind. The tag survives further wrapping.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return kindedError{kind: kind, err: err}
}

// KindOf returns the innermost Kind tagged on err. Deadline expiry from
// context cancellation is reported as KindDeadline even without a tag.
// Untagged errors report an empty Kind.
func KindOf(err error) Kind {
	var kinded kindedError
	if errors.As(err, &kinded) {
		return kinded.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindDeadline
	}
	return ""
}
