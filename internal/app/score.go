package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseScore turns a decoded request value into a score. Numbers, json.Number
// and numeric strings are accepted; the result must be finite and >= 0.
func ParseScore(raw any) (float64, error) {
	var (
		v   float64
		err error
	)
	switch s := raw.(type) {
	case nil:
		return 0, validation(ErrMissingScore)
	case float64:
		v = s
	case float32:
		v = float64(s)
	case int:
		v = float64(s)
	case int32:
		v = float64(s)
	case int64:
		v = float64(s)
	case uint:
		v = float64(s)
	case uint32:
		v = float64(s)
	case uint64:
		v = float64(s)
	case json.Number:
		v, err = s.Float64()
	case string:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return 0, validation(ErrInvalidScore)
		}
		v, err = strconv.ParseFloat(trimmed, 64)
	default:
		return 0, validation(ErrInvalidScore)
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, validation(ErrInvalidScore)
	}
	return v, nil
}

func validation(kind error) error {
	return fmt.Errorf("%w: %w", ErrValidation, kind)
}
