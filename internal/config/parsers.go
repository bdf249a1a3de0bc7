// Package config loads a run description from flags and an optional JSON or YAML file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
)

// lookupSetting returns the first candidate key present in settings. Viper
// lowercases keys, so the lowercase form of every candidate is tried too.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if val, ok := settings[key]; ok {
			return val, true
		}
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// asInt64 accepts any integer or float kind as well as decimal strings.
func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", value)
	}
}

func asInt(value interface{}) (int, error) {
	n, err := asInt64(value)
	return int(n), err
}

func asFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		n, err := asInt64(value)
		if err != nil {
			return 0, fmt.Errorf("unsupported float type %T", value)
		}
		return float64(n), nil
	}
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	default:
		return false, fmt.Errorf("unsupported boolean type %T", value)
	}
}

// asDuration parses Go duration strings; bare numbers are seconds.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		return time.ParseDuration(s)
	default:
		n, err := asInt64(value)
		if err != nil {
			return 0, fmt.Errorf("unsupported duration type %T", value)
		}
		return time.Duration(n) * time.Second, nil
	}
}

// asSize parses datasize notation ("64KB", "1MB"); bare numbers are bytes.
func asSize(value interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case datasize.ByteSize:
		return int64(v.Bytes()), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(s)); err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}
		return int64(size.Bytes()), nil
	default:
		n, err := asInt64(value)
		if err != nil {
			return 0, fmt.Errorf("unsupported size type %T", value)
		}
		return n, nil
	}
}

func asStringMap(value interface{}) (map[string]string, error) {
	raw, err := toStringKeyMap(value)
	if err != nil || raw == nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if k == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

// asStringSlice also accepts a single string as a one element list.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, err := asString(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported string slice type %T", value)
	}
}

// toStringKeyMap normalizes nested sections from JSON or YAML decoding. Keys
// keep their case; callers look them up with lookupSetting.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[strings.TrimSpace(key)] = val
		}
		return out, nil
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[strings.TrimSpace(key)] = val
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			s, err := asString(key)
			if err != nil {
				return nil, err
			}
			out[strings.TrimSpace(s)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected map, got %T", value)
	}
}
