// Package version orders dotted numeric version strings such as "1.2.10".
package version

import "strings"

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// Compare orders a against b segment by segment, left to right. Missing
// segments count as 0 and a segment that is not all decimal digits also
// counts as 0, so "1.2" == "1.2.0", "1.x" == "1.0" and "v1.2" == "0.2".
// Segments may be arbitrarily long.
func Compare(a, b string) Ordering {
	as, bs := segments(a), segments(b)

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		x, y := "0", "0"
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		if o := compareDigits(x, y); o != Equal {
			return o
		}
	}
	return Equal
}

// Newer reports whether candidate is strictly greater than current.
func Newer(candidate, current string) bool {
	return Compare(candidate, current) == Greater
}

// Normalize renders v with every segment parsed, e.g. "01.2.x" -> "1.2.0".
func Normalize(v string) string {
	segs := segments(v)
	if len(segs) == 0 {
		return "0"
	}
	return strings.Join(segs, ".")
}

// compareDigits orders two canonical decimal strings without converting
// them, so segments wider than uint64 still compare numerically.
func compareDigits(x, y string) Ordering {
	switch {
	case len(x) > len(y):
		return Greater
	case len(x) < len(y):
		return Less
	}
	switch strings.Compare(x, y) {
	case 1:
		return Greater
	case -1:
		return Less
	}
	return Equal
}

// segments splits v into canonical decimal strings: leading zeros are
// dropped and anything that is not all digits becomes "0".
func segments(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}

	raw := strings.Split(v, ".")
	out := make([]string, len(raw))
	for i, part := range raw {
		out[i] = canonical(strings.TrimSpace(part))
	}
	return out
}

func canonical(part string) string {
	if part == "" {
		return "0"
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return "0"
		}
	}
	if trimmed := strings.TrimLeft(part, "0"); trimmed != "" {
		return trimmed
	}
	return "0"
}
