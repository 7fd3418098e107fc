package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// JSONTagName makes validator report fields by their JSON names.
func JSONTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// BindError converts a request decoding or validation failure into a
// ValidationFailure carrying every field-level message.
func BindError(err error) *AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, FieldMessage(fe))
		}
		return ValidationFailed(msgs, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return NewValidation("Request body is empty").WithCause(err)
	case errors.As(err, &syntaxErr):
		return NewValidation("Request body is not valid JSON").WithCause(err)
	case errors.As(err, &typeErr):
		return ValidationFailed([]string{fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)}, err)
	}
	return NewValidation("Invalid request body").WithCause(err)
}

// FieldMessage renders one validator failure for clients.
func FieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	numeric := isNumeric(fe.Kind())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please provide %s", field)
	case "email":
		return "Please provide a valid email"
	case "eqfield":
		if field == "passwordConfirm" {
			return "Passwords are not the same"
		}
		return fmt.Sprintf("%s must match %s", field, lowerFirst(fe.Param()))
	case "ltfield":
		return fmt.Sprintf("%s (%v) should be below %s", field, fe.Value(), lowerFirst(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if numeric {
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
		return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
	case "max":
		if numeric {
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		}
		return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be %s or less", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// lowerFirst turns a Go field name used as a tag param into its JSON form.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
