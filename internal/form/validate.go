package form

import (
	"fmt"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// Process coerces and validates a full submission against the form's fields.
// All field errors are accumulated; a non-nil error is a validation_error
// envelope carrying every failing field. Unknown keys in raw are dropped.
func Process(cfg *model.FormConfig, raw map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(cfg.Fields))
	var details []model.FieldError

	for _, field := range cfg.Fields {
		coerced, ferr := CoerceField(field, raw[field.ID])
		if ferr != nil {
			details = append(details, *ferr)
			continue
		}
		if ferr := validateField(field, coerced); ferr != nil {
			details = append(details, *ferr)
			continue
		}
		values[field.ID] = coerced
	}

	if len(details) > 0 {
		return nil, model.NewValidationError(details)
	}
	return values, nil
}

func validateField(field model.FormFieldConfig, value any) *model.FieldError {
	if isEmpty(value) {
		if field.Required {
			return fieldError(field, "required", "is required")
		}
		return nil
	}

	switch field.Type {
	case model.FieldNumber:
		n := value.(float64)
		if field.Min != nil && n < *field.Min {
			return fieldError(field, "min", fmt.Sprintf("must be at least %v", *field.Min))
		}
		if field.Max != nil && n > *field.Max {
			return fieldError(field, "max", fmt.Sprintf("must be at most %v", *field.Max))
		}
	case model.FieldText, model.FieldTextarea, model.FieldPassword:
		s := value.(string)
		if field.MaxLength != nil && len([]rune(s)) > *field.MaxLength {
			return fieldError(field, "max_length", fmt.Sprintf("must be at most %d characters", *field.MaxLength))
		}
	case model.FieldMultiSelect:
		items := value.([]any)
		if field.MaxSelections != nil && len(items) > *field.MaxSelections {
			return fieldError(field, "max_selections", fmt.Sprintf("select at most %d options", *field.MaxSelections))
		}
	case model.FieldCheckbox:
		if field.Required && value == false {
			return fieldError(field, "required", "must be checked")
		}
	case model.FieldDate, model.FieldTime, model.FieldDateTime:
		// ISO date and time strings order lexicographically.
		s := value.(string)
		if field.DateMin != "" && s < field.DateMin {
			return fieldError(field, "date_min", fmt.Sprintf("must not be before %s", field.DateMin))
		}
		if field.DateMax != "" && s > field.DateMax {
			return fieldError(field, "date_max", fmt.Sprintf("must not be after %s", field.DateMax))
		}
	}
	return nil
}

// isEmpty reports whether a coerced value counts as "no value" for the
// required check. False is not empty; a required checkbox is handled by its
// own rule.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
