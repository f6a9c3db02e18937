package commands

import (
	"fmt"
	"strings"

	"github.com/mbocsi/hostbridge/scene"
)

func stringParam(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidInput(fmt.Sprintf("Parameter %s must be a string", key), nil)
	}
	return s, nil
}

func requiredString(params map[string]any, key string) (string, error) {
	s, err := stringParam(params, key, "")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", invalidInput("Missing required parameter: "+key, nil)
	}
	return s, nil
}

// vec3Param reads an [x, y, z] triple. Absent or null yields nil.
func vec3Param(params map[string]any, key string) (*scene.Vec3, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}

	var vals []float64
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, invalidInput(fmt.Sprintf("Parameter %s must contain only numbers", key), nil)
			}
			vals = append(vals, f)
		}
	case []float64:
		vals = t
	case []int:
		for _, e := range t {
			vals = append(vals, float64(e))
		}
	case scene.Vec3:
		vals = t.Slice()
	default:
		return nil, invalidInput(fmt.Sprintf("Parameter %s must be a list of 3 numbers", key), nil)
	}

	if len(vals) != 3 {
		return nil, invalidInput(fmt.Sprintf("Parameter %s must have 3 components, got %d", key, len(vals)), nil)
	}
	return &scene.Vec3{vals[0], vals[1], vals[2]}, nil
}

// boolParam accepts JSON booleans as well as 0/1 and "true"/"false", which is
// how host attribute values often arrive.
func boolParam(params map[string]any, key string) (*bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(t) {
		case "true", "1", "on":
			b = true
		case "false", "0", "off":
			b = false
		default:
			return nil, invalidInput(fmt.Sprintf("Parameter %s must be a boolean", key), nil)
		}
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, invalidInput(fmt.Sprintf("Parameter %s must be a boolean", key), nil)
		}
		b = f != 0
	}
	return &b, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
