package db

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateDefinition checks a duty definition at authoring time. Anything
// rejected here never reaches the expander or the materializer.
func ValidateDefinition(def *DutyDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("definition validation failed: %w", err)
	}

	switch def.Mode {
	case ModeRotation, ModeFairDistribution:
		if len(def.RotationGroup) == 0 {
			return fmt.Errorf("assignment mode %q requires a non-empty rotation group", def.Mode)
		}
	case ModeFixed:
		if def.FixedAssigneeID == "" {
			return fmt.Errorf("assignment mode %q requires a fixed assignee", def.Mode)
		}
	}

	if def.EndDate != "" && def.EndDate < def.StartDate {
		return fmt.Errorf("end date %s is before start date %s", def.EndDate, def.StartDate)
	}

	return nil
}

// ValidateException checks an exception record at authoring time
func ValidateException(exc *DutyException) error {
	if exc.DefinitionID == "" {
		return fmt.Errorf("exception requires a definition id")
	}
	if err := validate.Var(exc.Date, "required,datetime=2006-01-02"); err != nil {
		return fmt.Errorf("exception date %q is not a valid date: %w", exc.Date, err)
	}
	switch exc.Type {
	case ExceptionSkip, ExceptionModify, ExceptionAdd:
	default:
		return fmt.Errorf("unknown exception type %q", exc.Type)
	}
	if exc.TimeOfDay != "" {
		if err := validate.Var(exc.TimeOfDay, "datetime=15:04"); err != nil {
			return fmt.Errorf("exception time %q is not a valid time of day: %w", exc.TimeOfDay, err)
		}
	}
	return nil
}
