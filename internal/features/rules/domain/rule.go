package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// ErrUnknownOperator is returned by Evaluate for operators outside the supported set.
var ErrUnknownOperator = errors.New("unknown rule operator")

// ErrInvalidRule is returned when a rule is missing required fields.
var ErrInvalidRule = errors.New("invalid rule")

// Order context keys available to shipping rules.
const (
	FieldPincode     = "pincode"
	FieldState       = "state"
	FieldCity        = "city"
	FieldTotalAmount = "total_amount"
	FieldWeight      = "weight"
	FieldChannel     = "channel"
	FieldPaymentType = "payment_type"
	FieldIsCOD       = "is_cod"
	FieldCODAmount   = "cod_amount"
	FieldItemCount   = "item_count"
)

// OrderContext is the immutable snapshot of order attributes rules are evaluated against.
type OrderContext map[string]any

// Operator is a ShippingRule comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpInList      Operator = "in_list"
	OpNotInList   Operator = "not_in_list"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "starts_with"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpInList, OpNotInList, OpContains, OpStartsWith:
		return true
	}
	return false
}

// InvalidComparisonError reports a numeric comparison on non-numeric input.
type InvalidComparisonError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidComparisonError) Error() string {
	return fmt.Sprintf("cannot compare %s=%q numerically: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidComparisonError) Unwrap() error { return e.Err }

// ShippingRule assigns a carrier when one order attribute satisfies a condition.
type ShippingRule struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Field             string    `json:"field"`
	Operator          Operator  `json:"operator"`
	Value             RuleValue `json:"value"`
	AssignedCarrierID string    `json:"assigned_carrier_id"`
	FallbackCarrierID string    `json:"fallback_carrier_id,omitempty"`
	Priority          int       `json:"priority"`
	Enabled           bool      `json:"enabled"`
}

// Evaluate reports whether the rule matches ctx. Disabled rules and missing
// fields never match.
func (r *ShippingRule) Evaluate(ctx OrderContext) (bool, error) {
	if !r.Enabled {
		return false, nil
	}

	raw, ok := ctx[r.Field]
	if !ok || raw == nil {
		return false, nil
	}
	field := cast.ToString(raw)

	switch r.Operator {
	case OpEquals:
		return field == r.Value.String(), nil
	case OpNotEquals:
		return field != r.Value.String(), nil
	case OpGreaterThan, OpLessThan:
		return r.compareNumeric(raw)
	case OpInList:
		return slices.Contains(r.Value.Items(), field), nil
	case OpNotInList:
		return !slices.Contains(r.Value.Items(), field), nil
	case OpContains:
		return strings.Contains(strings.ToLower(field), strings.ToLower(r.Value.String())), nil
	case OpStartsWith:
		return strings.HasPrefix(field, r.Value.String()), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, r.Operator)
	}
}

func (r *ShippingRule) compareNumeric(raw any) (bool, error) {
	left, err := cast.ToFloat64E(raw)
	if err != nil {
		return false, &InvalidComparisonError{Field: r.Field, Value: cast.ToString(raw), Err: err}
	}
	right, err := cast.ToFloat64E(strings.TrimSpace(r.Value.String()))
	if err != nil {
		return false, &InvalidComparisonError{Field: r.Field, Value: r.Value.String(), Err: err}
	}
	if r.Operator == OpGreaterThan {
		return left > right, nil
	}
	return left < right, nil
}
