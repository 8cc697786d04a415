package routing

import (
	"reflect"
	"strings"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

const (
	matchAll = "all"
	matchAny = "any"
)

// MatchHeaders applies the x-match rule of a headers binding. Arguments
// prefixed with "x-" are directives and never compared.
func MatchHeaders(args, headers amqp091.Table) bool {
	mode := matchAll
	if v, ok := args[amqp.ARG_X_MATCH].(string); ok && strings.EqualFold(v, matchAny) {
		mode = matchAny
	}

	for k, want := range args {
		if strings.HasPrefix(k, "x-") {
			continue
		}
		got, ok := headers[k]
		matched := ok && valuesEqual(want, got)
		if mode == matchAny && matched {
			return true
		}
		if mode == matchAll && !matched {
			return false
		}
	}
	return mode == matchAll
}

// ValidMatchMode reports whether args carry a usable x-match value. A missing
// value means "all".
func ValidMatchMode(args amqp091.Table) bool {
	v, ok := args[amqp.ARG_X_MATCH]
	if !ok {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.ToLower(s)
	return s == matchAll || s == matchAny
}

// valuesEqual compares header values. Integers compare by value whatever
// their width or signedness, as do floats.
func valuesEqual(a, b interface{}) bool {
	if ai, aSigned, ok := integer(a); ok {
		bi, bSigned, ok := integer(b)
		if !ok {
			return false
		}
		switch {
		case aSigned == bSigned:
			return ai == bi
		case aSigned:
			return int64(ai) >= 0 && ai == bi
		default:
			return int64(bi) >= 0 && ai == bi
		}
	}
	if af, ok := float(a); ok {
		bf, ok := float(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// integer widens v to 64 bits. Signed values keep their two's complement
// bits so equality still holds within one signedness.
func integer(v interface{}) (uint64, bool, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true, true
	case int8:
		return uint64(n), true, true
	case int16:
		return uint64(n), true, true
	case int32:
		return uint64(n), true, true
	case int64:
		return uint64(n), true, true
	case uint:
		return uint64(n), false, true
	case uint8:
		return uint64(n), false, true
	case uint16:
		return uint64(n), false, true
	case uint32:
		return uint64(n), false, true
	case uint64:
		return n, false, true
	}
	return 0, false, false
}

func float(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}
