package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
)

// newValidator validador compartido; los errores usan el nombre JSON del campo.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationResponse cuerpo 400 con el detalle por campo.
func validationResponse(err error) dto.ErrorResponse {
	resp := dto.ErrorResponse{Code: CodeValidation, Message: "datos inválidos"}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		resp.Message = err.Error()
		return resp
	}
	for _, fe := range verrs {
		resp.Details = append(resp.Details, dto.FieldDetail{
			Field:   fieldPath(fe.Namespace()),
			Message: validationMessage(fe),
		})
	}
	return resp
}

// fieldPath quita el nombre del struct raíz: "RecordBatchRequest.items[0].kind" -> "items[0].kind".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es requerido"
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	case "max":
		return "máximo " + fe.Param()
	case "min":
		return "mínimo " + fe.Param()
	default:
		return "valor inválido"
	}
}
