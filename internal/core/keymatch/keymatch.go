// Package keymatch canonicalizes SSH fingerprints and GPG key ids and decides
// whether a signature key is registered among an account's key records
package keymatch

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Kind is the signing key family
type Kind string

const (
	// KindUnknown is returned when a key string cannot be classified
	KindUnknown Kind = ""
	// KindSSH is an SSH signing key identified by its fingerprint
	KindSSH Kind = "ssh"
	// KindGPG is an OpenPGP key identified by long key id or fingerprint
	KindGPG Kind = "gpg"
)

// ParseKind accepts "ssh" or "gpg" in any case
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSSH:
		return KindSSH, true
	case KindGPG:
		return KindGPG, true
	default:
		return KindUnknown, false
	}
}

// SignatureKey is the key that produced a tag signature
type SignatureKey struct {
	Kind     Kind
	Identity string
}

// Record is one key registered to an account
// Identity and Aliases are canonical forms of the same key
type Record struct {
	Kind     Kind
	Identity string
	Aliases  []string
	Valid    bool
	Label    string
}

// Detail explains a match decision
type Detail struct {
	Candidates int // records of the signature's kind
	Matches    int // valid records whose identity matched
	Invalid    int // matching records skipped as expired, revoked or flagged invalid
}

// Registered reports whether exactly one valid record matched
func (d Detail) Registered() bool { return d.Matches == 1 }

// Match reports whether sig is registered among records
func Match(sig SignatureKey, records []Record) bool {
	return MatchDetail(sig, records).Registered()
}

// MatchDetail compares sig against every record of the same kind
func MatchDetail(sig SignatureKey, records []Record) Detail {
	var d Detail
	want := Canonical(sig.Kind, sig.Identity)
	if want == "" {
		return d
	}
	for _, r := range records {
		if r.Kind != sig.Kind {
			continue
		}
		d.Candidates++
		if !recordMatches(sig.Kind, want, r) {
			continue
		}
		if !r.Valid {
			d.Invalid++
			continue
		}
		d.Matches++
	}
	return d
}

func recordMatches(kind Kind, want string, r Record) bool {
	if equal(kind, want, Canonical(kind, r.Identity)) {
		return true
	}
	for _, a := range r.Aliases {
		if equal(kind, want, Canonical(kind, a)) {
			return true
		}
	}
	return false
}

func equal(kind Kind, a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if kind != KindGPG {
		return false
	}
	// v4 long key id is the low 64 bits of the fingerprint
	switch {
	case len(a) == longIDLen && len(b) == v4FingerprintLen:
		return strings.HasSuffix(b, a)
	case len(b) == longIDLen && len(a) == v4FingerprintLen:
		return strings.HasSuffix(a, b)
	}
	return false
}

// Canonical returns the canonical form of s for kind, or "" if s is not a valid identity
func Canonical(kind Kind, s string) string {
	switch kind {
	case KindSSH:
		return NormalizeSSH(s)
	case KindGPG:
		return NormalizeGPG(s)
	default:
		return ""
	}
}

const (
	longIDLen        = 16
	v4FingerprintLen = 40
	v5FingerprintLen = 64
)

// NormalizeSSH canonicalizes an SSH fingerprint to lowercase hex of the digest
// Accepts "SHA256:<base64>", "MD5:aa:bb:..", colon separated hex and bare hex
// A labelled digest must have the length its algorithm produces
func NormalizeSSH(s string) string {
	s = strings.TrimSpace(s)
	want := 0
	if i := strings.IndexByte(s, ':'); i > 0 {
		if n, ok := sshDigestLen[strings.ToUpper(s[:i])]; ok {
			s, want = s[i+1:], n
		}
	}
	if s == "" {
		return ""
	}

	var raw []byte
	if h := strings.ToLower(strings.ReplaceAll(s, ":", "")); isHex(h) {
		b, err := hex.DecodeString(h)
		if err != nil {
			return ""
		}
		raw = b
	} else {
		if strings.Contains(s, ":") {
			return ""
		}
		b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return ""
		}
		raw = b
	}
	switch {
	case want != 0 && len(raw) != want:
		return ""
	case len(raw) == 16, len(raw) == 20, len(raw) == 32: // md5, sha1, sha256
		return hex.EncodeToString(raw)
	}
	return ""
}

// sshDigestLen is the byte length for each fingerprint label
var sshDigestLen = map[string]int{"MD5": 16, "SHA1": 20, "SHA256": 32}

// NormalizeGPG canonicalizes a key id or fingerprint to uppercase hex
// Only long ids and full fingerprints qualify; 8 char short ids collide too easily
func NormalizeGPG(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':':
			return -1
		}
		return r
	}, s)
	s = strings.ToUpper(s)
	if !isHex(s) {
		return ""
	}
	switch len(s) {
	case longIDLen, v4FingerprintLen, v5FingerprintLen:
		return s
	}
	return ""
}

// DetectKind guesses the key family from its textual form
// Algorithm prefixed and colon separated forms are SSH; bare hex ids are GPG
func DetectKind(s string) Kind {
	s = strings.TrimSpace(s)
	up := strings.ToUpper(s)
	if strings.HasPrefix(up, "SHA256:") || strings.HasPrefix(up, "MD5:") {
		if NormalizeSSH(s) != "" {
			return KindSSH
		}
		return KindUnknown
	}
	if strings.Contains(s, ":") {
		if NormalizeSSH(s) != "" {
			return KindSSH
		}
		return KindUnknown
	}
	if NormalizeGPG(s) != "" {
		return KindGPG
	}
	if NormalizeSSH(s) != "" {
		return KindSSH
	}
	return KindUnknown
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
