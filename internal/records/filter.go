package records

import (
	"errors"
	"fmt"
	"strings"
)

// Filter is the structured predicate used by dynamic call lists.
// Conditions are AND-combined; an empty filter matches nothing (a dynamic
// list must be explicit about its membership).
type Filter struct {
	Conditions []Condition `json:"conditions"`
}

type Condition struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
)

var ErrFilter = errors.New("records: filter cannot be evaluated")

// Validate checks the filter shape without evaluating it.
// Refresh must fail before any membership write when the predicate is malformed.
func (f Filter) Validate() error {
	if len(f.Conditions) == 0 {
		return fmt.Errorf("%w: no conditions", ErrFilter)
	}
	for _, c := range f.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("%w: condition field required", ErrFilter)
		}
		switch c.Op {
		case OpEq, OpNeq, OpContains:
		case OpIn:
			if _, ok := c.Value.([]any); !ok {
				if _, ok := c.Value.([]string); !ok {
					return fmt.Errorf("%w: op %q requires a list value", ErrFilter, c.Op)
				}
			}
		case OpGt, OpLt:
			if _, ok := toFloat(c.Value); !ok {
				return fmt.Errorf("%w: op %q requires a numeric value", ErrFilter, c.Op)
			}
		default:
			return fmt.Errorf("%w: unknown op %q", ErrFilter, c.Op)
		}
	}
	return nil
}

// Match evaluates the filter against a record.
func (f Filter) Match(r Record) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	for _, c := range f.Conditions {
		ok, err := c.match(r)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c Condition) match(r Record) (bool, error) {
	val, ok := fieldValue(r, c.Field)
	if !ok {
		// Missing field is a non-match, not an evaluation failure.
		return false, nil
	}

	switch c.Op {
	case OpEq:
		return equalValues(val, c.Value), nil
	case OpNeq:
		return !equalValues(val, c.Value), nil
	case OpIn:
		for _, item := range toList(c.Value) {
			if equalValues(val, item) {
				return true, nil
			}
		}
		return false, nil
	case OpContains:
		s, ok := val.(string)
		if !ok {
			return false, nil
		}
		needle := fmt.Sprintf("%v", c.Value)
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle)), nil
	case OpGt, OpLt:
		left, lok := toFloat(val)
		right, rok := toFloat(c.Value)
		if !lok {
			return false, fmt.Errorf("%w: field %q is not numeric", ErrFilter, c.Field)
		}
		if !rok {
			return false, fmt.Errorf("%w: op %q requires a numeric value", ErrFilter, c.Op)
		}
		if c.Op == OpGt {
			return left > right, nil
		}
		return left < right, nil
	default:
		return false, fmt.Errorf("%w: unknown op %q", ErrFilter, c.Op)
	}
}

// fieldValue resolves well-known record columns first, then the Fields map.
func fieldValue(r Record, field string) (any, bool) {
	switch strings.ToLower(field) {
	case "status":
		return r.Status, r.Status != ""
	case "state":
		return r.State, r.State != ""
	case "owner_id", "ownerid":
		return r.OwnerID, r.OwnerID != ""
	case "type":
		return string(r.Type), r.Type != ""
	case "phone":
		return r.Phone, r.Phone != ""
	case "do_not_call", "donotcall":
		return r.DoNotCall, true
	}
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[field]
	return v, ok
}

func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
