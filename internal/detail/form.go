package detail

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
)

// Field describes one form field of a record.
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	ReadOnly bool   `json:"readOnly,omitempty"`
	// Rule is a validator tag applied to submitted values, e.g. "required,email".
	Rule string `json:"-"`
}

// FieldValue is a populated field.
type FieldValue struct {
	Field
	Value interface{} `json:"value"`
}

// Form is a declarative description of an editable record.
type Form []Field

// Populate fills fields from record. Missing fields default to empty string.
func (f Form) Populate(record map[string]interface{}) []FieldValue {
	values := make([]FieldValue, 0, len(f))
	for _, field := range f {
		v, ok := record[field.Name]
		if !ok || v == nil {
			v = ""
		}
		values = append(values, FieldValue{Field: field, Value: v})
	}
	return values
}

// Merge validates submitted values and returns the fields to write.
// Unknown and read-only fields are rejected; strings are trimmed.
func (f Form) Merge(input map[string]interface{}) (map[string]interface{}, error) {
	byName := make(map[string]Field, len(f))
	for _, field := range f {
		byName[field.Name] = field
	}

	names := make([]string, 0, len(input))
	for name := range input {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(map[string]interface{}, len(input))
	for _, name := range names {
		field, ok := byName[name]
		if !ok {
			return nil, &errors.ValidationError{Field: name, Msg: fmt.Sprintf("%v is not an editable field", name)}
		}
		if field.ReadOnly {
			return nil, &errors.ValidationError{Field: name, Msg: fmt.Sprintf("%v is read-only", name)}
		}

		value := input[name]
		if s, ok := value.(string); ok {
			value = strings.TrimSpace(s)
		}
		if err := ValidateValue(name, value, field.Rule); err != nil {
			return nil, err
		}
		if s, ok := value.(string); ok && hasRule(field.Rule, "mobile") {
			value = utils.NormalizeMobile(s)
		}
		fields[name] = value
	}

	if len(fields) == 0 {
		return nil, &errors.MalformedRequestError{Msg: "No fields to update"}
	}

	return fields, nil
}

func hasRule(rules, rule string) bool {
	for _, r := range strings.Split(rules, ",") {
		if r == rule {
			return true
		}
	}
	return false
}
