package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// modelSpec matches provider/model or provider/model@version. Model names
// may contain slashes, as in groq/openai/gpt-oss-20b.
var modelSpec = regexp.MustCompile(`^[a-z0-9]+/[A-Za-z0-9\-_\./]*[A-Za-z0-9\-_\.](@[A-Za-z0-9\-_\.]+)?$`)

// registerCustomValidators adds the semver and modelformat tags.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("modelformat", validateModelFormat); err != nil {
		return fmt.Errorf("failed to register modelformat validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z with non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(fl.Field().String(), "%d.%d.%d%s", &major, &minor, &patch, &rest)
	return n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateModelFormat checks a model pool entry.
func validateModelFormat(fl validator.FieldLevel) bool {
	return modelSpec.MatchString(fl.Field().String())
}
