package model

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	CodeLength           = 6
	CodeAlphabet         = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	MaxOriginalURLLength = 2048
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// ValidationError reports input rejected before anything was written.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Fields returns per-field messages when the underlying error came from ozzo-validation.
func (e *ValidationError) Fields() map[string]string {
	var verrs validation.Errors
	if !errors.As(e.Err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for field, err := range verrs {
		out[field] = err.Error()
	}
	return out
}

// Invalidf builds a ValidationError from a formatted message.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// OriginalURLRules are the rules applied to every submitted URL.
func OriginalURLRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.RuneLength(1, MaxOriginalURLLength),
		validation.By(absoluteURL),
	}
}

// ValidateOriginalURL checks raw against OriginalURLRules.
func ValidateOriginalURL(raw string) error {
	err := validation.Errors{
		"original_url": validation.Validate(raw, OriginalURLRules()...),
	}.Filter()
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidateBatchID checks a caller-supplied batch id.
func ValidateBatchID(batchID string) error {
	err := validation.Errors{
		"batch_id": validation.Validate(batchID, validation.Required, validation.RuneLength(1, MaxBatchIDLength)),
	}.Filter()
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// IsValidCode reports whether code could have been issued.
func IsValidCode(code string) bool {
	return codePattern.MatchString(code)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return errors.New("must not contain whitespace")
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be a valid absolute URL")
	}
	return nil
}
