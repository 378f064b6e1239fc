package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// RuleValue is the comparison operand of a ShippingRule: either one scalar or a list of strings.
type RuleValue struct {
	scalar string
	list   []string
	isList bool
}

// Scalar builds a single-valued operand. Non-string values are stringified.
func Scalar(v any) RuleValue {
	return RuleValue{scalar: cast.ToString(v)}
}

// List builds a list operand.
func List(values ...string) RuleValue {
	return RuleValue{list: append([]string(nil), values...), isList: true}
}

// IsList reports whether the operand was given as a list.
func (v RuleValue) IsList() bool { return v.isList }

// String returns the scalar, or the list joined with commas.
func (v RuleValue) String() string {
	if v.isList {
		return strings.Join(v.list, ",")
	}
	return v.scalar
}

// Items returns the operand as a list, wrapping a scalar into one element.
func (v RuleValue) Items() []string {
	if v.isList {
		return append([]string(nil), v.list...)
	}
	return []string{v.scalar}
}

// MarshalJSON writes a list as a JSON array and a scalar as a JSON string.
func (v RuleValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts an array of scalars or a single scalar of any JSON type.
func (v *RuleValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("rule value: %w", err)
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := scalarFromJSON(r)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		*v = RuleValue{list: items, isList: true}
		return nil
	}

	s, err := scalarFromJSON(data)
	if err != nil {
		return err
	}
	*v = RuleValue{scalar: s}
	return nil
}

func scalarFromJSON(data []byte) (string, error) {
	var x any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&x); err != nil {
		return "", fmt.Errorf("rule value: %w", err)
	}
	switch t := x.(type) {
	case nil:
		return "", nil
	case json.Number:
		return t.String(), nil
	case string:
		return t, nil
	case bool:
		return cast.ToString(t), nil
	default:
		return "", fmt.Errorf("rule value: unsupported element %s", string(data))
	}
}
