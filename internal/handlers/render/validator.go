package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/cardissuer/internal/models"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("cardid", validateCardID)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// validateCardID accepts the external card identifier format: exactly eight
// ascii letters or digits
func validateCardID(fl validator.FieldLevel) bool {
	cardID := fl.Field().String()
	if len(cardID) != models.CardIDLength {
		return false
	}

	// It's ok to work with string as bytes here
	for i := 0; i < len(cardID); i++ {
		c := cardID[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}

	return true
}
