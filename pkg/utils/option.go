// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package utils

import (
	"fmt"
	"strconv"
)

// Option is a loosely typed bag of provider/tuning options keyed by
// dotted names, e.g. "speak.voice.id".
type Option map[string]interface{}

// GetString returns the option as a string, converting scalars if needed.
func (o Option) GetString(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("option %q not found", key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

// GetInt returns the option as an int.
func (o Option) GetInt(key string) (int, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not found", key)
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		return strconv.Atoi(val)
	default:
		return 0, fmt.Errorf("option %q is not an int", key)
	}
}

// GetBool returns the option as a bool.
func (o Option) GetBool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, fmt.Errorf("option %q not found", key)
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return strconv.ParseBool(val)
	default:
		return false, fmt.Errorf("option %q is not a bool", key)
	}
}
