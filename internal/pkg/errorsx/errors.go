package errorsx

import "errors"

var (
	// Retryable indicates the operation may succeed if retried
	Retryable = errors.New("retryable")
	// Permanent indicates the operation will not succeed upon retry
	Permanent = errors.New("permanent")
)

// classified tags an error with a class without changing its message,
// so callers that record err.Error() see only the underlying text.
type classified struct {
	class error
	err   error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() error { return c.err }

func (c *classified) Is(target error) bool { return target == c.class }

// WrapRetryable wraps an error as retryable
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: Retryable, err: err}
}

// WrapPermanent wraps an error as permanent
func WrapPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: Permanent, err: err}
}

// IsRetryable reports whether err was classified retryable. Unclassified
// errors are not retried.
func IsRetryable(err error) bool {
	return errors.Is(err, Retryable)
}

func IsPermanent(err error) bool {
	return errors.Is(err, Permanent)
}
