package utils

import (
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindingValidations adds the custom tags to gin's binding engine.
func RegisterBindingValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("isphone", IsValidPhone)
	}
}

// IsValidPhone accepts 10 to 15 digits with an optional leading + and the
// usual separators.
func IsValidPhone(fl validator.FieldLevel) bool {
	return ValidPhone(fl.Field().String())
}

func ValidPhone(phoneNumber string) bool {
	phoneNumber = strings.TrimPrefix(strings.TrimSpace(phoneNumber), "+")
	digits := 0
	for _, char := range phoneNumber {
		switch {
		case unicode.IsDigit(char):
			digits++
		case char == ' ' || char == '-' || char == '(' || char == ')' || char == '.':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}
