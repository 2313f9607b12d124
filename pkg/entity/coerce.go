package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// coerce converts an update value to the Go value of the property's kind.
func coerce(prop model.Property, value, current interface{}) (interface{}, error) {
	switch prop.Kind {
	case model.KindBool:
		return toBool(value), nil
	case model.KindInt:
		return toInt(value)
	case model.KindFloat:
		return toFloat(value)
	case model.KindDict:
		update, err := toMap(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prop.Name, err)
		}
		if prop.MergeUpdate {
			if existing, _ := toMap(current); len(existing) > 0 {
				merged := copyMap(existing)
				for k, v := range update {
					merged[k] = v
				}
				return merged, nil
			}
		}
		return copyMap(update), nil
	default:
		return toString(value), nil
	}
}

// toBool treats everything but false and "false" as true.
func toBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "false"
	default:
		return true
	}
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot use %T as an integer", value)
	}
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot use %T as a number", value)
	}
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// toMap accepts a mapping or its JSON text.
func toMap(value interface{}) (datatypes.JSONMap, error) {
	switch v := value.(type) {
	case nil:
		return datatypes.JSONMap{}, nil
	case datatypes.JSONMap:
		return v, nil
	case map[string]interface{}:
		return datatypes.JSONMap(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return datatypes.JSONMap{}, nil
		}
		m := datatypes.JSONMap{}
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("invalid mapping: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cannot use %T as a mapping", value)
	}
}

func copyMap(m datatypes.JSONMap) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// references flattens a relationship value into ids or names. Empty
// strings and nil drop out.
func references(value interface{}) []interface{} {
	if value == nil {
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice {
		if s, ok := value.(string); ok && s == "" {
			return nil
		}
		return []interface{}{value}
	}
	refs := make([]interface{}, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		refs = append(refs, references(v.Index(i).Interface())...)
	}
	return refs
}

// plain deep-copies JSON containers into plain maps and slices.
func plain(value interface{}) interface{} {
	switch v := value.(type) {
	case datatypes.JSONMap:
		return plain(map[string]interface{}(v))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = plain(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return value
	}
}

// isNull reports values that export drops.
func isNull(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
