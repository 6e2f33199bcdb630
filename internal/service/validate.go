// File: internal/service/validate.go
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xkilldash9x/merchant-enroll/internal/errs"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks req and reports the first failing field, in
// declaration order, as a validation error.
func validateRequest(op string, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.New(errs.KindValidation, op, err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return errs.New(errs.KindValidation, op, fmt.Errorf("%s is required", fe.Field()))
	case "email":
		return errs.New(errs.KindValidation, op, fmt.Errorf("%s must be a valid email address", fe.Field()))
	}
	return errs.New(errs.KindValidation, op, fmt.Errorf("%s is invalid", fe.Field()))
}

// ValidationMessage extracts the caller-facing message of a validation error.
func ValidationMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindValidation && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
