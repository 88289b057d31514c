package gelf

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// CoerceTimestamp converts a numeric seconds-since-epoch value into a UTC
// time.Time with microsecond precision. GELF timestamps carry fractional
// seconds, and senders routinely emit more digits than a float64 can
// round-trip, so json.Number inputs are parsed as decimal strings to keep
// the fractional part exact. Sub-microsecond digits round to the nearest
// microsecond rather than truncating.
//
// The second return value reports whether v was numeric at all. Non-numeric
// values return (zero, false) so the caller can leave the original field
// untouched.
func CoerceTimestamp(v any) (time.Time, bool) {
	switch n := v.(type) {
	case json.Number:
		return coerceDecimal(n.String())
	case float64:
		return coerceFloat(n), true
	case float32:
		return coerceFloat(float64(n)), true
	case int:
		return time.Unix(int64(n), 0).UTC(), true
	case int32:
		return time.Unix(int64(n), 0).UTC(), true
	case int64:
		return time.Unix(n, 0).UTC(), true
	case uint:
		return time.Unix(int64(n), 0).UTC(), true
	case uint32:
		return time.Unix(int64(n), 0).UTC(), true
	case uint64:
		return time.Unix(int64(n), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// coerceFloat handles ordinary floating-point seconds. Good to ~microsecond
// precision for contemporary epoch values.
func coerceFloat(f float64) time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Unix(0, 0).UTC()
	}
	sec := math.Floor(f)
	micros := int64(math.Round((f - sec) * 1e6))
	if micros >= 1e6 {
		sec++
		micros -= 1e6
	}
	return time.Unix(int64(sec), micros*1000).UTC()
}

// coerceDecimal parses a decimal string (the json.Number form) without going
// through float64, preserving fractional digits exactly up to microseconds.
// Falls back to float parsing for exponent notation.
func coerceDecimal(s string) (time.Time, bool) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return coerceFloat(f), true
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	neg := strings.HasPrefix(intPart, "-")
	sec, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	micros, err := fractionMicros(fracPart)
	if err != nil {
		return time.Time{}, false
	}
	if micros >= 1e6 {
		micros -= 1e6
		if neg {
			sec--
		} else {
			sec++
		}
	}
	if neg && micros > 0 {
		// -1.25s is 250ms before -1s, i.e. second -2 plus 750000us.
		sec--
		micros = 1e6 - micros
	}
	return time.Unix(sec, micros*1000).UTC(), true
}

// fractionMicros converts the digits after the decimal point to microseconds,
// rounding the seventh digit half-up. Returns up to 1e6 inclusive (the caller
// carries the overflow into seconds).
func fractionMicros(frac string) (int64, error) {
	if frac == "" {
		return 0, nil
	}
	// Seven digits: six for microseconds plus one rounding digit.
	digits := frac
	if len(digits) > 7 {
		digits = digits[:7]
	}
	for len(digits) < 7 {
		digits += "0"
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	return (n + 5) / 10, nil
}
