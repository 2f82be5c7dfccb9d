package gerrit

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"tagvalidate/internal/core/keymatch"
)

// AccountInfo is the DETAILS view of an account
type AccountInfo struct {
	ID              int64    `json:"_account_id"`
	Name            string   `json:"name,omitempty"`
	DisplayName     string   `json:"display_name,omitempty"`
	Email           string   `json:"email,omitempty"`
	SecondaryEmails []string `json:"secondary_emails,omitempty"`
	Username        string   `json:"username,omitempty"`
	Inactive        bool     `json:"inactive,omitempty"`
}

// Ref is the decimal account id used in key endpoints
func (a AccountInfo) Ref() string { return strconv.FormatInt(a.ID, 10) }

// EmailInfo is one entry of accounts/{id}/emails
type EmailInfo struct {
	Email     string `json:"email"`
	Preferred bool   `json:"preferred,omitempty"`
}

// SSHKeyInfo is one entry of accounts/{id}/sshkeys
type SSHKeyInfo struct {
	Seq          int    `json:"seq"`
	SSHPublicKey string `json:"ssh_public_key"`
	EncodedKey   string `json:"encoded_key"`
	Algorithm    string `json:"algorithm"`
	Comment      string `json:"comment,omitempty"`
	Valid        *bool  `json:"valid,omitempty"`
	// Fingerprint is set by some proxies and plugins in place of the key body
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Record converts the key into a match record; absent validity means valid
// A parseable public key wins over a reported fingerprint
func (k SSHKeyInfo) Record() (keymatch.Record, error) {
	valid := k.Valid == nil || *k.Valid
	line := strings.TrimSpace(k.SSHPublicKey)
	if line == "" && k.EncodedKey != "" {
		line = strings.TrimSpace(k.Algorithm + " " + k.EncodedKey + " " + k.Comment)
	}
	rec, err := keymatch.SSHRecord(line, valid)
	if err == nil {
		return rec, nil
	}
	if fp := keymatch.NormalizeSSH(k.Fingerprint); fp != "" {
		return keymatch.Record{Kind: keymatch.KindSSH, Identity: fp, Valid: valid, Label: k.Comment}, nil
	}
	return keymatch.Record{}, err
}

// GPGKeyInfo is one value of accounts/{id}/gpgkeys
type GPGKeyInfo struct {
	ID          string   `json:"id,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	UserIDs     []string `json:"user_ids,omitempty"`
	Key         string   `json:"key,omitempty"`
	Status      string   `json:"status,omitempty"` // BAD, OK or TRUSTED
	Problems    []string `json:"problems,omitempty"`
}

// ServerValid applies the server's own verdict
func (k GPGKeyInfo) ServerValid() bool {
	if strings.EqualFold(k.Status, "BAD") {
		return false
	}
	for _, p := range k.Problems {
		lp := strings.ToLower(p)
		if strings.Contains(lp, "revoked") || strings.Contains(lp, "expired") {
			return false
		}
	}
	return true
}

// Records expands the key into match records, primary first then signing subkeys
func (k GPGKeyInfo) Records(now time.Time) []keymatch.Record {
	return keymatch.GPGRecords(keymatch.GPGKey{
		ID:          k.ID,
		Fingerprint: k.Fingerprint,
		Armored:     k.Key,
		ServerValid: k.ServerValid(),
	}, now)
}

// SSHRecords converts keys in server order; keys that fail to parse are counted and skipped
func SSHRecords(keys []SSHKeyInfo) (recs []keymatch.Record, skipped int) {
	recs = make([]keymatch.Record, 0, len(keys))
	for _, k := range keys {
		r, err := k.Record()
		if err != nil {
			skipped++
			continue
		}
		recs = append(recs, r)
	}
	return recs, skipped
}

// GPGRecords converts keys ordered by key id
func GPGRecords(keys map[string]GPGKeyInfo, now time.Time) []keymatch.Record {
	ids := make([]string, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var recs []keymatch.Record
	for _, id := range ids {
		k := keys[id]
		if k.ID == "" {
			k.ID = id
		}
		recs = append(recs, k.Records(now)...)
	}
	return recs
}
