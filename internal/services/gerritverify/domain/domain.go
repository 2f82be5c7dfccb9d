// Package domain defines the gerrit verification types and ports
package domain

import "context"

// ServiceName is reported in every result
const ServiceName = "gerrit"

// Request asks whether a signing key is registered to an account on a Gerrit server
type Request struct {
	// Owner is the signer email, or a Gerrit username when it has no "@"
	Owner string `json:"owner" validate:"required,account_ident"`
	// KeyType is "ssh" or "gpg"; empty means detect from Key
	KeyType string `json:"key_type" validate:"required,oneof=ssh gpg"`
	// Key is an SSH fingerprint or a GPG long key id / fingerprint
	Key string `json:"key" validate:"required"`

	// Server is "true", "false", a host or an https url
	Server    string `json:"server"`
	GitHubOrg string `json:"github_org,omitempty"`

	Username string `json:"-"`
	Password string `json:"-"`

	// RequireOwner lists acceptable owner emails; empty disables the check
	RequireOwner []string `json:"require_owner,omitempty" validate:"omitempty,dive,email"`
	// Enumerate fetches both key kinds and reports their counts
	Enumerate bool `json:"enumerate,omitempty"`
}

// VerificationResult is produced on every path, success or not
type VerificationResult struct {
	KeyRegistered bool `json:"key_registered"`
	// Verified is KeyRegistered plus the owner check when one was requested
	Verified bool `json:"verified"`
	// Username is the numeric account id
	Username        string `json:"username"`
	AccountUsername string `json:"account_username,omitempty"`
	UserName        string `json:"user_name,omitempty"`
	UserEmail       string `json:"user_email,omitempty"`

	Service    string `json:"service"`
	Server     string `json:"server"`
	Enumerated bool   `json:"enumerated"`
	KeyType    string `json:"key_type,omitempty"`

	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	StatusCode   int       `json:"status_code,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OwnerMatched *bool     `json:"owner_matched,omitempty"`

	SSHKeys *int `json:"ssh_keys,omitempty"`
	GPGKeys *int `json:"gpg_keys,omitempty"`
}

// Failed reports whether the run ended in Error rather than a definitive answer
func (r VerificationResult) Failed() bool { return r.ErrorKind.IsSystem() }

// VerifierPort verifies one or many requests
type VerifierPort interface {
	Verify(ctx context.Context, req Request) VerificationResult
	VerifyAll(ctx context.Context, reqs []Request) []VerificationResult
}
