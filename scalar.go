package saveable

import (
	"strconv"
)

// FormatScalar renders a canonical scalar (or nil for none) as text for
// text-based backends. ParseScalar reverses it exactly.
func FormatScalar(v any) string {
	switch v := v.(type) {
	case nil:
		return NoneLiteral
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		panic(errorf(ErrUnsupported, "%T is not a canonical scalar", v))
	}
}

func ParseScalar(k Kind, s string) (any, error) {
	switch k {
	case KindBool:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, dataErrf([]byte(s), ErrCorrupt, "invalid bool")
	case KindInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, dataErrf([]byte(s), ErrCorrupt, "invalid int: %v", err)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, dataErrf([]byte(s), ErrCorrupt, "invalid float: %v", err)
		}
		return v, nil
	case KindStr:
		return s, nil
	case KindNone:
		if s != NoneLiteral {
			return nil, dataErrf([]byte(s), ErrInconsistent, "none value without the %q marker", NoneLiteral)
		}
		return nil, nil
	default:
		return nil, dataErrf([]byte(s), ErrCorrupt, "%v is not a scalar kind", k)
	}
}

// ParseScalars parses each item as kind k.
func ParseScalars(k Kind, items []string) ([]any, error) {
	out := make([]any, len(items))
	for i, s := range items {
		v, err := ParseScalar(k, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
