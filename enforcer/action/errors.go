package action

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned for wiring mistakes: an outcome paired with a target kind it can't act
// on, missing collaborators, or missing templates. These are code or config defects, not bad data, and
// should never be retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether any error in err's chain is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}

// ErrUnsupportedOperation is returned when an outcome is executed outside of the path it is meant to be
// applied from.
var ErrUnsupportedOperation = errors.New("unsupported operation")
