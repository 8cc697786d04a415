package routing

import (
	"regexp"
	"strings"
)

const (
	singleWildcard = "*"
	multiWildcard  = "#"
)

// CompileTopic turns a dot-segmented binding pattern into an anchored
// expression. "*" matches one segment, which may be empty. "#" matches zero
// or more segments.
func CompileTopic(pattern string) *regexp.Regexp {
	segments := collapseMulti(strings.Split(pattern, "."))

	var b strings.Builder
	b.WriteString("^")
	for i, seg := range segments {
		// A leading "#" already consumed the separator of the next segment.
		if i > 0 && !(i == 1 && segments[0] == multiWildcard) && seg != multiWildcard {
			b.WriteString(`\.`)
		}
		switch seg {
		case multiWildcard:
			switch {
			case len(segments) == 1:
				b.WriteString(`.*`)
			case i == 0:
				b.WriteString(`(?:.*\.)?`)
			default:
				b.WriteString(`(?:\..*)?`)
			}
		case singleWildcard:
			b.WriteString(`[^.]*`)
		default:
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// MatchTopic reports whether routingKey is delivered to a binding declared
// with bindingKey. A routing key holding wildcards is also tried against a
// literal binding key, so "a.*.c" reaches a binding on "a.b.c".
func MatchTopic(routingKey, bindingKey string) bool {
	if CompileTopic(bindingKey).MatchString(routingKey) {
		return true
	}
	if HasWildcard(routingKey) && !HasWildcard(bindingKey) {
		return CompileTopic(routingKey).MatchString(bindingKey)
	}
	return false
}

// HasWildcard reports whether any segment of key is "*" or "#".
func HasWildcard(key string) bool {
	for _, seg := range strings.Split(key, ".") {
		if seg == singleWildcard || seg == multiWildcard {
			return true
		}
	}
	return false
}

func collapseMulti(segments []string) []string {
	out := segments[:0:0]
	for _, seg := range segments {
		if seg == multiWildcard && len(out) > 0 && out[len(out)-1] == multiWildcard {
			continue
		}
		out = append(out, seg)
	}
	return out
}
