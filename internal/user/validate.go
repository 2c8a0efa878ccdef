package user

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// space is every rune a browser treats as whitespace in a pattern,
// including the Unicode space separators that \s alone misses.
const space = `\s\v\p{Z}\x{FEFF}`

var (
	emailRegex   = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)
	phoneRegex   = regexp.MustCompile(`^(\+\d{1,3}[- ]?)?\d{10}$`)
	websiteRegex = regexp.MustCompile(`(?i)^(https?://[^` + space + `/$.?#].[^` + space + `]*)$`)
)

const (
	MsgNameInvalid     = "Name is required and must be at least 3 characters."
	MsgUsernameMissing = "Username is required."
	MsgEmailMissing    = "Email is required."
	MsgEmailInvalid    = "Enter a valid email."
	MsgPhoneInvalid    = "Phone is required and must be a valid phone number."
	MsgWebsiteMissing  = "Website is required."
	MsgWebsiteInvalid  = "Enter a valid URL starting with http:// or https://."
)

// messages maps field -> failing tag -> message shown next to the field.
var messages = map[string]map[string]string{
	"name":     {"ufname": MsgNameInvalid},
	"username": {"filled": MsgUsernameMissing},
	"email":    {"required": MsgEmailMissing, "ufemail": MsgEmailInvalid},
	"phone":    {"ufphone": MsgPhoneInvalid},
	"website":  {"filled": MsgWebsiteMissing, "ufwebsite": MsgWebsiteInvalid},
}

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid user: " + strings.Join(names, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "filled", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, "ufname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return strings.TrimSpace(name) != "" && utf8.RuneCountInString(name) >= 3
	})
	mustRegister(v, "ufemail", func(fl validator.FieldLevel) bool {
		return emailRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "ufphone", func(fl validator.FieldLevel) bool {
		phone := fl.Field().String()
		return strings.TrimSpace(phone) != "" && phoneRegex.MatchString(phone)
	})
	mustRegister(v, "ufwebsite", func(fl validator.FieldLevel) bool {
		return websiteRegex.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// ValidateCreate checks a create form. Call Normalize first.
func ValidateCreate(in CreateUserInput) error {
	return toValidationError(validate.Struct(in))
}

// ValidateUpdate checks an edit form. Call Normalize first.
func ValidateUpdate(in UpdateUserInput) error {
	return toValidationError(validate.Struct(in))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()][fe.Tag()]
		if !ok {
			msg = "Invalid value."
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}
