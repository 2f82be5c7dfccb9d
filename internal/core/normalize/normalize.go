// Package normalize folds email addresses into a comparable form
// Pipeline order
// 1 drop control runes and invalid UTF-8
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Strip format chars (zero-width joiners, BOM)
// 5 Trim surrounding space and angle brackets
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)),
		)
	},
}

// Email returns the comparison form of an address
// Two addresses are the same owner iff their Email forms are equal
func Email(s string) string {
	s = Sanitize(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
	if s == "" {
		return ""
	}

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.TrimSpace(out)
}

// EmailSet is a set of folded addresses
type EmailSet map[string]struct{}

// NewEmailSet folds every non-empty address into a set
func NewEmailSet(addrs ...string) EmailSet {
	set := make(EmailSet, len(addrs))
	set.Add(addrs...)
	return set
}

// Add inserts folded addresses, skipping empties
func (s EmailSet) Add(addrs ...string) {
	for _, a := range addrs {
		if e := Email(a); e != "" {
			s[e] = struct{}{}
		}
	}
}

// Intersects reports whether any member of o is in s
func (s EmailSet) Intersects(o EmailSet) bool {
	small, big := s, o
	if len(small) > len(big) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}
