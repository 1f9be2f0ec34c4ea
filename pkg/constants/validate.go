package constants

import "github.com/go-playground/validator/v10"

// Validate is the process-wide validator instance DTOs check themselves with.
var Validate = validator.New(validator.WithRequiredStructEnabled())
