package tools

import "fmt"

// ValidateParams checks a call's arguments against a tool's declared
// parameters, in the order: required-presence, type, enum membership,
// length/range bounds, absolute integer cap. The first failure
// short-circuits with a message naming the offending field.
func ValidateParams(params []Parameter, args map[string]any) (bool, string) {
	for _, p := range params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				return false, fmt.Sprintf("missing required parameter: %s", p.Name)
			}
			continue
		}

		if ok, msg := validateType(p, v); !ok {
			return false, msg
		}

		if len(p.Enum) > 0 {
			if ok, msg := validateEnum(p, v); !ok {
				return false, msg
			}
		}

		if ok, msg := validateBounds(p, v); !ok {
			return false, msg
		}
	}
	return true, ""
}

func validateType(p Parameter, v any) (bool, string) {
	switch p.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return false, fmt.Sprintf("parameter %s must be a string", p.Name)
		}
	case TypeInteger:
		// integers explicitly reject bools: in Go, bool and int are
		// distinct types, so a type switch already rejects bool — but we
		// keep the check explicit to preserve the invariant's intent for
		// callers passing untyped JSON numbers.
		if _, isBool := v.(bool); isBool {
			return false, fmt.Sprintf("parameter %s must be an integer, got boolean", p.Name)
		}
		switch n := v.(type) {
		case int, int32, int64:
		case float64:
			if n != float64(int64(n)) {
				return false, fmt.Sprintf("parameter %s must be an integer", p.Name)
			}
		default:
			return false, fmt.Sprintf("parameter %s must be an integer", p.Name)
		}
	case TypeNumber:
		if _, isBool := v.(bool); isBool {
			return false, fmt.Sprintf("parameter %s must be a number, got boolean", p.Name)
		}
		switch v.(type) {
		case int, int32, int64, float32, float64:
		default:
			return false, fmt.Sprintf("parameter %s must be a number", p.Name)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return false, fmt.Sprintf("parameter %s must be a boolean", p.Name)
		}
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return false, fmt.Sprintf("parameter %s must be an array", p.Name)
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return false, fmt.Sprintf("parameter %s must be an object", p.Name)
		}
	}
	return true, ""
}

func validateEnum(p Parameter, v any) (bool, string) {
	s, ok := v.(string)
	if !ok {
		return true, ""
	}
	for _, e := range p.Enum {
		if e == s {
			return true, ""
		}
	}
	return false, fmt.Sprintf("parameter %s must be one of %v", p.Name, p.Enum)
}

func validateBounds(p Parameter, v any) (bool, string) {
	switch p.Type {
	case TypeString:
		s := v.(string)
		limit := p.MaxLength
		if limit <= 0 {
			limit = MaxStringLength
		}
		if len(s) > limit {
			return false, fmt.Sprintf("parameter %s exceeds maximum length of %d", p.Name, limit)
		}
	case TypeArray:
		a := v.([]any)
		limit := p.MaxLength
		if limit <= 0 {
			limit = MaxArrayLength
		}
		if len(a) > limit {
			return false, fmt.Sprintf("parameter %s exceeds maximum length of %d", p.Name, limit)
		}
	case TypeInteger, TypeNumber:
		f := toFloat(v)
		if p.Min != 0 || p.Max != 0 {
			if p.Min != 0 && f < p.Min {
				return false, fmt.Sprintf("parameter %s below minimum %v", p.Name, p.Min)
			}
			if p.Max != 0 && f > p.Max {
				return false, fmt.Sprintf("parameter %s above maximum %v", p.Name, p.Max)
			}
		}
		if p.Type == TypeInteger {
			abs := f
			if abs < 0 {
				abs = -abs
			}
			if abs > MaxIntegerValue {
				return false, fmt.Sprintf("parameter %s exceeds absolute cap of %d", p.Name, MaxIntegerValue)
			}
		}
	}
	return true, ""
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
