package route

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeDuplicateName: two non-alias records share a name.
	ErrCodeDuplicateName ConfigErrorCode = "DUPLICATE_NAME"

	// ErrCodeDuplicateParam: a param name repeats inside one path.
	ErrCodeDuplicateParam ConfigErrorCode = "DUPLICATE_PARAM"

	// ErrCodeAliasIsPath: an alias equals the path it aliases.
	ErrCodeAliasIsPath ConfigErrorCode = "ALIAS_IS_PATH"

	// ErrCodeUnmatchedAlias: an alias cannot reach its canonical record.
	ErrCodeUnmatchedAlias ConfigErrorCode = "UNMATCHED_ALIAS"

	// ErrCodeInvalidRedirect: a redirect sets zero or several targets.
	ErrCodeInvalidRedirect ConfigErrorCode = "INVALID_REDIRECT"

	// ErrCodeInvalidPattern: the path does not compile.
	ErrCodeInvalidPattern ConfigErrorCode = "INVALID_PATTERN"
)

// ConfigurationError is reported while registering routes. Registration
// carries on; the first registration of a conflicting entry wins.
type ConfigurationError struct {
	Code    ConfigErrorCode
	Path    string
	Name    string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (path=%s, name=%s)", e.Code, e.Message, e.Path, e.Name)
	}
	return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
}

// IsConfigurationError reports whether err is, or wraps, a
// *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// HasCode reports whether err is a *ConfigurationError with code.
func HasCode(err error, code ConfigErrorCode) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
