// Package validate wraps a singleton go-playground validator with english messages
// and json tag names, and maps failures to project errors
package validate

import (
	"errors"
	"net/mail"
	"reflect"
	"strings"
	"sync"

	perr "tagvalidate/internal/platform/errors"
	"tagvalidate/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *Svc
)

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerAccountIdent(v, trans)

		vSvc = &Svc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Struct validates s and returns a Validation-coded error carrying the first failing field
func Struct(s any) error {
	err := Get().Validator.Struct(s)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Get().Error().Err(inv).Msg("validator internal error")
		return perr.Wrap(inv, perr.ErrorCodeValidation, "validation error")
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", msg), field)
}

// FieldAndMessage returns the first field and translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

// IsAccountIdent reports whether s can identify a Gerrit account:
// either a plain address or a username without whitespace or slashes
func IsAccountIdent(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n/?#") {
		return false
	}
	if strings.Contains(s, "@") {
		a, err := mail.ParseAddress(s)
		return err == nil && a.Address == s
	}
	return true
}

func registerAccountIdent(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("account_ident", func(fl validator.FieldLevel) bool {
		return IsAccountIdent(fl.Field().String())
	})
	_ = v.RegisterTranslation("account_ident", trans,
		func(ut ut.Translator) error {
			return ut.Add("account_ident", "{0} must be an email address or a username", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("account_ident", fe.Field())
			return msg
		},
	)
}
