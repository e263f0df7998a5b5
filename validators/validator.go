package validators

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator adapts go-playground/validator to echo.Validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a validator that reports fields by their json names
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("weburl", isWebURL)
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

var webSchemes = map[string]bool{"http": true, "https": true, "ftp": true, "ftps": true}

func isWebURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return webSchemes[strings.ToLower(u.Scheme)] && u.Host != "" && !strings.ContainsAny(u.Host, " \t")
}

// FieldErrors maps json field names to human readable messages
type FieldErrors map[string][]string

// Add appends a message for field
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Has reports whether field already has an error
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msgs := range fe {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ToFieldErrors converts the result of Validate into FieldErrors. Errors that
// are not validation errors are returned unchanged as the second value.
func ToFieldErrors(err error) (FieldErrors, error) {
	fe := FieldErrors{}
	if err == nil {
		return fe, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fe, err
	}
	for _, e := range verrs {
		fe.Add(e.Field(), message(e))
	}
	return fe, nil
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url", "weburl":
		return "Enter a valid URL."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", e.Param())
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", e.Tag())
	}
}

// IsFieldErrors reports whether err carries FieldErrors
func IsFieldErrors(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}
