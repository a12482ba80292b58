package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Convert turns a transport value (typically decoded JSON) into T.
// Numbers arrive as float64 from encoding/json, so numeric targets accept any
// numeric source and numeric strings.
func Convert[T any](v any) (T, error) {
	var zero T
	if t, ok := v.(T); ok {
		return t, nil
	}

	out := zero
	switch p := any(&out).(type) {
	case *float64:
		f, err := toFloat(v)
		if err != nil {
			return zero, err
		}
		*p = f
	case *int:
		f, err := toFloat(v)
		if err != nil {
			return zero, err
		}
		if f != math.Trunc(f) {
			return zero, fmt.Errorf("%w: %v is not an integer", ErrConvert, v)
		}
		*p = int(f)
	case *int64:
		f, err := toFloat(v)
		if err != nil {
			return zero, err
		}
		if f != math.Trunc(f) {
			return zero, fmt.Errorf("%w: %v is not an integer", ErrConvert, v)
		}
		*p = int64(f)
	case *bool:
		s, ok := v.(string)
		if !ok {
			return zero, fmt.Errorf("%w: %T to bool", ErrConvert, v)
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return zero, fmt.Errorf("%w: %q to bool", ErrConvert, s)
		}
		*p = b
	case *string:
		switch x := v.(type) {
		case float64:
			*p = strconv.FormatFloat(x, 'f', -1, 64)
		case int:
			*p = strconv.Itoa(x)
		case json.Number:
			*p = x.String()
		default:
			return zero, fmt.Errorf("%w: %T to string", ErrConvert, v)
		}
	default:
		return zero, fmt.Errorf("%w: unsupported target %T", ErrConvert, zero)
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrConvert, x.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrConvert, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T to number", ErrConvert, v)
	}
}
