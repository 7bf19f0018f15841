package web

import (
	"encoding/hex"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/adamwoolhether/webshell/web/errs"
)

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	translator ut.Translator
)

// Bridge-specific messages, keyed by validation tag. Anything else falls
// back to the stock English translation.
var messages = map[string]string{
	"required": "{0} is required",
	"url":      "{0} must be an absolute URL",
	"sha256":   "{0} must be a hex-encoded SHA-256 digest",
}

func init() {
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("web: no en translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	if err := validate.RegisterValidation("sha256", isSHA256); err != nil {
		panic(err)
	}

	for tag, text := range messages {
		err := validate.RegisterTranslation(tag, translator,
			func(ut ut.Translator) error { return ut.Add(tag, text, true) },
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					return fe.Error()
				}
				return msg
			},
		)
		if err != nil {
			panic(err)
		}
	}

	// Report JSON names so the page can map failures to its own fields.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// isSHA256 accepts 64 hex digits in either case.
func isSHA256(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != hex.EncodedLen(32) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Validate checks val against its validate tags and reports failures as
// errs.FieldErrors keyed by JSON name.
func Validate(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	verrs, ok := errors.AsType[validator.ValidationErrors](err)
	if !ok {
		return err
	}

	fields := make(errs.FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errs.FieldError{Field: fe.Field(), Err: fe.Translate(translator)})
	}

	return fields
}
