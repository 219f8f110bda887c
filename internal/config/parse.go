package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	idListType   = reflect.TypeOf([]int64(nil))
)

// secondsDurationHook decodes durations, treating bare numbers as seconds
// ("60" and 60 both mean one minute).
func secondsDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	return ParseSeconds(data)
}

// ParseSeconds converts a number of seconds or a Go duration string.
func ParseSeconds(data any) (time.Duration, error) {
	switch v := data.(type) {
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	default:
		secs, err := cast.ToFloat64E(data)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %v: %w", data, err)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}

// idListHook decodes "123, 456" strings into id lists.
func idListHook(from, to reflect.Type, data any) (any, error) {
	if to != idListType {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return ParseIDs(s), nil
	}
	return data, nil
}

// ParseIDs splits a comma or whitespace separated list of numeric ids.
// Entries that are not positive integers are skipped.
func ParseIDs(raw string) []int64 {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})

	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
