package contextutils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs go-playground/validator tags on v and converts failures into
// an ErrValidationFailed AppError listing each offending field.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return WrapError(ErrInvalidInput, err.Error())
	}

	problems := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}

	return NewAppError(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", strings.Join(problems, "; "))
}

// IsValidRole reports whether role is one of the platform roles.
func IsValidRole(role string) bool {
	return validate.Var(role, "required,oneof=student instructor admin") == nil
}
