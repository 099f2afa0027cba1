package record

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BaSui01/intake/types"
)

// Normalize converts a raw tool argument into its canonical value
// according to the field spec. It is a pure transformation:
//
//   - list fields split on "," with per-element whitespace trimming; a
//     raw value matching the sentinel case-insensitively yields an empty
//     list
//   - sentinel scalar fields store the sentinel literal (lowercased),
//     not an absent value
//   - int fields parse strictly; malformed input is a validation error
//
// Emptiness of required fields is the dispatcher's concern, not this
// function's.
func Normalize(spec types.FieldSpec, raw any) (any, error) {
	switch spec.Type {
	case types.FieldList:
		return normalizeList(spec, raw)
	case types.FieldInt:
		return normalizeInt(spec, raw)
	case types.FieldString, types.FieldText:
		return normalizeScalar(spec, raw)
	default:
		return nil, types.NewErrorf(types.ErrValidation, "unknown field type %q", spec.Type).WithField(spec.Name)
	}
}

func normalizeList(spec types.FieldSpec, raw any) ([]string, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, types.NewErrorf(types.ErrValidation, "expected string for list field, got %T", raw).WithField(spec.Name)
	}
	if isSentinel(spec, s) {
		return []string{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out, nil
}

func normalizeInt(spec types.FieldSpec, raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		// JSON 数字解码为 float64；只接受整数值
		if v != float64(int(v)) {
			return 0, types.NewErrorf(types.ErrValidation, "expected integer, got %v", v).WithField(spec.Name)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, types.NewErrorf(types.ErrValidation, "expected integer, got %q", v.String()).WithField(spec.Name).WithCause(err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, types.NewErrorf(types.ErrValidation, "expected integer, got %q", v).WithField(spec.Name).WithCause(err)
		}
		return n, nil
	default:
		return 0, types.NewErrorf(types.ErrValidation, "expected integer for field, got %T", raw).WithField(spec.Name)
	}
}

func normalizeScalar(spec types.FieldSpec, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", types.NewErrorf(types.ErrValidation, "expected string for field, got %T", raw).WithField(spec.Name)
	}
	if isSentinel(spec, s) {
		return strings.ToLower(spec.Sentinel), nil
	}
	return s, nil
}

func isSentinel(spec types.FieldSpec, raw string) bool {
	return spec.Sentinel != "" && strings.EqualFold(strings.TrimSpace(raw), spec.Sentinel)
}
