package services

import (
	"math"
	"strconv"
	"strings"
)

// Coercion-Helfer für lose typisierte Upstream-Daten (Sheet-Importe,
// JSON-Payloads, in denen Bool/String und Zahl/String gemischt ankommen).

func coerceBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		if s == "true" {
			return true, true
		}
		if s == "false" {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceUint(v any) (uint, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, false
		}
		return uint(t), true
	case int:
		if t < 0 {
			return 0, false
		}
		return uint(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint(t), true
	case uint:
		return t, true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	default:
		return 0, false
	}
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, strings.TrimSpace(s) != ""
}

// CoerceApproved normalisiert den lose typisierten Approval-Flag:
// Bool wird durchgereicht, Strings zählen nur bei "true" (case-insensitive),
// alles andere (nil, Zahlen, "pending", ...) ergibt false.
func CoerceApproved(v any) bool {
	b, ok := coerceBool(v)
	return ok && b
}

// CoerceCoordinate normalisiert eine Koordinate: Zahl wird durchgereicht,
// Strings werden geparst, alles Unparsebare wird 0. NaN verlässt diese
// Funktion nie.
func CoerceCoordinate(v any) float64 {
	f, ok := coerceFloat(v)
	if !ok {
		return 0
	}
	return f
}
