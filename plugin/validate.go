package plugin

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
)

// ValidationError carries {field, value, message}. It implements error so
// it composes with normal Go error handling, while callers that want the
// structured fields can type-assert.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Message)
}

// Rule validates a single field's value, returning a *ValidationError on failure.
type Rule func(field string, value any) *ValidationError

// Required fails if value is nil or an empty string.
func Required() Rule {
	return func(field string, value any) *ValidationError {
		if value == nil {
			return &ValidationError{Field: field, Value: value, Message: "is required"}
		}
		if s, ok := value.(string); ok && s == "" {
			return &ValidationError{Field: field, Value: value, Message: "is required"}
		}
		return nil
	}
}

// IsString fails if value is not a string.
func IsString() Rule {
	return func(field string, value any) *ValidationError {
		if _, ok := value.(string); !ok {
			return &ValidationError{Field: field, Value: value, Message: "must be a string"}
		}
		return nil
	}
}

// IsNumber fails if value is not a float64 (the type encoding/json decodes
// JSON numbers into when the target is any).
func IsNumber() Rule {
	return func(field string, value any) *ValidationError {
		if _, ok := value.(float64); !ok {
			return &ValidationError{Field: field, Value: value, Message: "must be a number"}
		}
		return nil
	}
}

// IsBool fails if value is not a bool.
func IsBool() Rule {
	return func(field string, value any) *ValidationError {
		if _, ok := value.(bool); !ok {
			return &ValidationError{Field: field, Value: value, Message: "must be a boolean"}
		}
		return nil
	}
}

// MinLength fails if value is a shorter string than n.
func MinLength(n int) Rule {
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok || len(s) < n {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be at least %d characters", n)}
		}
		return nil
	}
}

// MaxLength fails if value is a longer string than n.
func MaxLength(n int) Rule {
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok || len(s) > n {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be at most %d characters", n)}
		}
		return nil
	}
}

// Min fails if value is a number below n.
func Min(n float64) Rule {
	return func(field string, value any) *ValidationError {
		f, ok := value.(float64)
		if !ok || f < n {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be at least %v", n)}
		}
		return nil
	}
}

// Max fails if value is a number above n.
func Max(n float64) Rule {
	return func(field string, value any) *ValidationError {
		f, ok := value.(float64)
		if !ok || f > n {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be at most %v", n)}
		}
		return nil
	}
}

// Email fails if value is not a syntactically valid email address.
func Email() Rule {
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: field, Value: value, Message: "must be an email address"}
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return &ValidationError{Field: field, Value: value, Message: "must be a valid email address"}
		}
		return nil
	}
}

// URL fails if value is not a syntactically valid, absolute URL.
func URL() Rule {
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: field, Value: value, Message: "must be a url"}
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: field, Value: value, Message: "must be a valid, absolute url"}
		}
		return nil
	}
}

// OneOf fails unless value equals one of allowed.
func OneOf(allowed ...string) Rule {
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: field, Value: value, Message: "must be a string"}
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be one of %v", allowed)}
	}
}

// Pattern fails unless value matches the given regular expression.
func Pattern(expr string) Rule {
	re := regexp.MustCompile(expr)
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok || !re.MatchString(s) {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must match pattern %q", expr)}
		}
		return nil
	}
}

// Validator accumulates per-field rules and runs them against a params map.
type Validator struct {
	fields map[string][]Rule
	order  []string
}

// NewValidator creates an empty Validator.
func NewValidator() *Validator {
	return &Validator{fields: make(map[string][]Rule)}
}

// Field registers rules for the named field, in the order they should run.
func (v *Validator) Field(name string, rules ...Rule) *Validator {
	if _, exists := v.fields[name]; !exists {
		v.order = append(v.order, name)
	}
	v.fields[name] = append(v.fields[name], rules...)
	return v
}

// Validate runs every registered field's rules against params, returning the
// first failure encountered in field-registration order, or nil.
func (v *Validator) Validate(params map[string]any) *ValidationError {
	for _, field := range v.order {
		value := params[field]
		for _, rule := range v.fields[field] {
			if verr := rule(field, value); verr != nil {
				return verr
			}
		}
	}
	return nil
}

// WithValidation wraps handler so params are validated before it runs. A
// failing validation short-circuits the call with the *ValidationError,
// which the kernel renders as an InternalError carrying the combined
// message.
func WithValidation(v *Validator, handler Handler) Handler {
	return func(ctx context.Context, params map[string]any, call *CallContext) (any, error) {
		if verr := v.Validate(params); verr != nil {
			return nil, verr
		}
		return handler(ctx, params, call)
	}
}
