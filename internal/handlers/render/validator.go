package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/ledger/internal/service/validate"
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cpf", validateCPF)
	v.RegisterTagNameFunc(useJSONTagNames)
	return v
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validateCPF(fl validator.FieldLevel) bool {
	return validate.CPF(fl.Field().String()) == nil
}
