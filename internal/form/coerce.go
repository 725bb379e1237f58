// Package form converts submitted form values into their native types and
// validates them against the field configuration. Select-family fields travel
// over the wire as option indexes; coercion maps them back to option values.
package form

import (
	"fmt"
	"strconv"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// CoerceField converts one raw submitted value into the native value for the
// field's type. An empty string submission for number and select fields means
// "no value" and coerces to nil.
func CoerceField(field model.FormFieldConfig, raw any) (any, *model.FieldError) {
	if raw == nil {
		return nil, nil
	}

	switch field.Type {
	case model.FieldNumber:
		return coerceNumber(field, raw)
	case model.FieldSelect, model.FieldRadio:
		return coerceOption(field, raw)
	case model.FieldMultiSelect:
		return coerceOptionList(field, raw)
	case model.FieldCheckbox:
		return coerceCheckbox(field, raw)
	default:
		// Text-family and date-family values stay as strings.
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", raw), nil
	}
}

func coerceNumber(field model.FormFieldConfig, raw any) (any, *model.FieldError) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fieldError(field, "invalid_number", "must be a number")
		}
		return n, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fieldError(field, "invalid_number", "must be a number")
	}
}

// coerceOption maps an option index back to the option's configured value.
func coerceOption(field model.FormFieldConfig, raw any) (any, *model.FieldError) {
	idx, empty, ok := optionIndex(raw)
	if empty {
		return nil, nil
	}
	if !ok || idx < 0 || idx >= len(field.Options) {
		return nil, fieldError(field, "invalid_option", "is not one of the allowed options")
	}
	return field.Options[idx].Value, nil
}

func coerceOptionList(field model.FormFieldConfig, raw any) (any, *model.FieldError) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fieldError(field, "invalid_option", "must be a list of options")
	}
	values := make([]any, 0, len(items))
	for _, item := range items {
		idx, empty, ok := optionIndex(item)
		if empty {
			continue
		}
		if !ok || idx < 0 || idx >= len(field.Options) {
			return nil, fieldError(field, "invalid_option", "is not one of the allowed options")
		}
		values = append(values, field.Options[idx].Value)
	}
	return values, nil
}

func coerceCheckbox(field model.FormFieldConfig, raw any) (any, *model.FieldError) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
	}
	return nil, fieldError(field, "invalid_boolean", "must be true or false")
}

// optionIndex reads an option index from its wire form. Indexes arrive as
// strings; JSON numbers are accepted too.
func optionIndex(raw any) (idx int, empty, ok bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return 0, true, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, false
		}
		return n, false, true
	case float64:
		return int(v), false, true
	case int:
		return v, false, true
	default:
		return 0, false, false
	}
}

func fieldError(field model.FormFieldConfig, code, message string) *model.FieldError {
	return &model.FieldError{Field: field.ID, Code: code, Message: message}
}
