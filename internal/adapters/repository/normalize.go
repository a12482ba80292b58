package repository

import (
	"fmt"
	"strings"

	"github.com/okian/openrpg/internal/domain/field"
	"github.com/okian/openrpg/internal/domain/model"
)

// Normalize validates fieldKey and converts value to the type stored for
// it: numbers for currencies and weights, integers for characteristic and
// skill values and modifiers, booleans for visibility and strings for text.
func Normalize(fieldKey string, value any) (any, error) {
	k, err := model.ParseFieldKey(fieldKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidField, err)
	}

	var out any
	switch {
	case k.Kind == model.KindCurrency && k.Attr == "":
		out, err = field.Convert[float64](value)
	case k.Kind == model.KindCharacteristic && (k.Attr == model.AttrValue || k.Attr == model.AttrModifier):
		out, err = convertInt(value)
	case k.Kind == model.KindSkill && k.Attr == model.AttrValue:
		out, err = convertInt(value)
	case k.Kind == model.KindItem && k.Attr == model.AttrWeight:
		out, err = field.Convert[float64](value)
	case k.Kind == model.KindItem && k.Attr == model.AttrVisible:
		out, err = field.Convert[bool](value)
	case k.Kind == model.KindItem && (k.Attr == model.AttrName || k.Attr == model.AttrDescription):
		out, err = convertText(value)
	case k.Kind == model.KindSpec && k.Attr == "":
		out, err = convertText(value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, fieldKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, fieldKey, err)
	}
	return out, nil
}

// convertInt accepts integral numbers and signed text such as "+3".
func convertInt(value any) (int, error) {
	if s, ok := value.(string); ok {
		n, err := field.ParseModifier(s)
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	return field.Convert[int](value)
}

func convertText(value any) (string, error) {
	s, err := field.Convert[string](value)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}
