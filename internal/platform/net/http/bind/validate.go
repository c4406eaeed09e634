package bind

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

// FieldLevel is what custom validation funcs receive
type FieldLevel = validator.FieldLevel

var (
	validOnce sync.Once
	valid     *validator.Validate
	trans     ut.Translator
)

// messages overrides the stock english text for a few tags
var messages = map[string]string{
	"min":           "{0} must be at least {1}",
	"max":           "{0} must be at most {1}",
	"redshift_host": "{0} must be a redshift.amazonaws.com host",
}

func validate() (*validator.Validate, ut.Translator) {
	validOnce.Do(func() {
		loc := en.New()
		trans, _ = ut.New(loc, loc).GetTranslator("en")

		valid = validator.New(validator.WithRequiredStructEnabled())
		valid.RegisterTagNameFunc(jsonName)
		_ = entrans.RegisterDefaultTranslations(valid, trans)
		_ = valid.RegisterValidation("redshift_host", redshiftHost)

		for tag, text := range messages {
			override(tag, text)
		}
	})
	return valid, trans
}

// jsonName reports fields by their json name so errors match the payload
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func override(tag, text string) {
	_ = valid.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// redshiftHost accepts cluster and serverless endpoints, which all end in redshift.amazonaws.com
func redshiftHost(fl FieldLevel) bool {
	h := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	return strings.HasSuffix(h, ".redshift.amazonaws.com") || strings.HasSuffix(h, ".redshift-serverless.amazonaws.com")
}

// RegisterValidation adds or replaces a custom tag
func RegisterValidation(tag string, fn validator.Func) error {
	v, _ := validate()
	return v.RegisterValidation(tag, fn)
}

// Struct validates v. The first failing field becomes a Validation error
// naming that field
func Struct(v any) error {
	vd, _ := validate()
	err := vd.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Get().Error().Err(inv).Msg("validator misuse")
		return perr.Wrap(inv, perr.ErrorCodeUnknown, "validation error")
	}
	field, msg := FirstFailure(err)
	return perr.WithField(perr.New(perr.ErrorCodeValidation, msg), field)
}

// FirstFailure returns the first failing field and its translated message.
// Errors that are not validator errors come back with an empty field
func FirstFailure(err error) (field, msg string) {
	if err == nil {
		return "", ""
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		_, tr := validate()
		return ve[0].Field(), ve[0].Translate(tr)
	}
	return "", err.Error()
}
