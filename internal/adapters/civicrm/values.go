package civicrm

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// row is one host record. The API returns numbers both as JSON numbers and as
// strings, so accessors accept either.
type row map[string]any

func (r row) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (r row) int64Val(key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.str(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (r row) intVal(key string) int {
	return int(r.int64Val(key))
}

// optInt64 returns nil for absent, empty or zero values.
func (r row) optInt64(key string) *int64 {
	if n := r.int64Val(key); n != 0 {
		return &n
	}
	return nil
}

func (r row) optInt(key string) *int {
	s := strings.TrimSpace(r.str(key))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func (r row) boolVal(key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.str(key))) {
	case "1", "true":
		return true
	default:
		return false
	}
}

func (r row) decimalVal(key string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(r.str(key)))
	if err != nil {
		return decimal.Zero
	}
	return d
}
