package errorsx

import "errors"

var (
	// Retryable indicates the operation may succeed if retried
	Retryable = errors.New("retryable")
	// Permanent indicates the operation will not succeed upon retry
	Permanent = errors.New("permanent")
)

// WrapRetryable wraps an error as retryable
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(Retryable, err)
}

// WrapPermanent wraps an error as permanent.
// Background tasks failing with a permanent error are not retried.
func WrapPermanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(Permanent, err)
}

func IsRetryable(err error) bool {
	return errors.Is(err, Retryable)
}

func IsPermanent(err error) bool {
	return errors.Is(err, Permanent)
}

// Message returns the error text without the classification marker
func Message(err error) string {
	if err == nil {
		return ""
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			if e != Retryable && e != Permanent {
				return e.Error()
			}
		}
	}
	return err.Error()
}
