package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tagvalidate/internal/core/keymatch"

	gvdom "tagvalidate/internal/services/gerritverify/domain"
)

// report is the JSON shape printed with --json
type report struct {
	Success       bool   `json:"success"`
	IsRegistered  bool   `json:"is_registered"`
	KeyType       string `json:"key_type"`
	Username      string `json:"username,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Server        string `json:"server,omitempty"`
	Service       string `json:"service"`
	Enumerated    bool   `json:"enumerated"`
	OwnerMatched  *bool  `json:"owner_matched,omitempty"`
	SSHKeys       *int   `json:"ssh_keys,omitempty"`
	GPGKeys       *int   `json:"gpg_keys,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Hint          string `json:"hint,omitempty"`
	TestMode      bool   `json:"test_mode,omitempty"`
	Key           string `json:"key,omitempty"`
	NormalizedKey string `json:"normalized_key,omitempty"`
}

func reportFor(res gvdom.VerificationResult) report {
	r := report{
		Success:      res.Verified,
		IsRegistered: res.KeyRegistered,
		KeyType:      res.KeyType,
		Username:     displayUsername(res),
		AccountID:    res.Username,
		Email:        res.UserEmail,
		Name:         res.UserName,
		Server:       res.Server,
		Service:      res.Service,
		Enumerated:   res.Enumerated,
		OwnerMatched: res.OwnerMatched,
		SSHKeys:      res.SSHKeys,
		GPGKeys:      res.GPGKeys,
		ErrorKind:    string(res.ErrorKind),
		StatusCode:   res.StatusCode,
		Reason:       res.Reason,
	}
	if res.ErrorKind != "" {
		r.Error = res.ErrorKind.Message()
		r.Hint = res.ErrorKind.Hint()
	} else if !res.Verified && res.Reason != "" {
		r.Error = res.Reason
	}
	return r
}

func displayUsername(res gvdom.VerificationResult) string {
	if res.AccountUsername != "" {
		return res.AccountUsername
	}
	return res.Username
}

func printJSON(w io.Writer, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, `{"success":false,"error":%q}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(w, string(b))
}

func printText(w io.Writer, res gvdom.VerificationResult) {
	kt := strings.ToUpper(res.KeyType)
	switch {
	case res.Verified:
		fmt.Fprintf(w, "%s key REGISTERED on Gerrit\n", kt)
	case res.KeyRegistered:
		fmt.Fprintf(w, "%s key REGISTERED on Gerrit but NOT VERIFIED: %s\n", kt, res.Reason)
	case res.ErrorKind.IsSystem():
		fmt.Fprintf(w, "Error: %s\n", res.ErrorKind.Message())
		if res.StatusCode != 0 {
			fmt.Fprintf(w, "  HTTP status: %d\n", res.StatusCode)
		}
		if res.Reason != "" {
			fmt.Fprintf(w, "  Detail: %s\n", res.Reason)
		}
		fmt.Fprintf(w, "Hint: %s\n", res.ErrorKind.Hint())
	default:
		fmt.Fprintf(w, "%s key NOT REGISTERED on Gerrit\n", kt)
		if res.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", res.Reason)
		}
	}

	for _, line := range userDetails(displayUsername(res), res.UserEmail, res.UserName) {
		fmt.Fprintln(w, line)
	}
	if res.SSHKeys != nil && res.GPGKeys != nil {
		fmt.Fprintf(w, "  • Keys: %d SSH, %d GPG\n", *res.SSHKeys, *res.GPGKeys)
	}
	if res.Server != "" {
		fmt.Fprintf(w, "Gerrit Server: %s\n", res.Server)
	}
}

func userDetails(username, email, name string) []string {
	var lines []string
	if username != "" {
		lines = append(lines, "  • Username: "+username)
	}
	if email != "" {
		lines = append(lines, "  • Email: "+email)
	}
	if name != "" {
		lines = append(lines, "  • Name: "+name)
	}
	return lines
}

func usageError(w io.Writer, jsonOut bool, msg string) {
	if jsonOut {
		printJSON(w, report{Service: gvdom.ServiceName, Error: msg, Hint: gvdom.InvalidRequest.Hint()})
		return
	}
	fmt.Fprintf(w, "Error: %s\n", msg)
}

func printTestMode(w io.Writer, o cliOpts, key string, kind keymatch.Kind) int {
	norm := keymatch.Canonical(kind, key)
	if o.jsonOut {
		printJSON(w, report{
			Success:       norm != "",
			KeyType:       string(kind),
			Server:        o.server,
			Service:       gvdom.ServiceName,
			TestMode:      true,
			Key:           key,
			NormalizedKey: norm,
		})
	} else {
		fmt.Fprintln(w, "Test mode: no request sent to Gerrit")
		fmt.Fprintf(w, "  • Key type: %s\n", strings.ToUpper(orUnknown(string(kind))))
		fmt.Fprintf(w, "  • Key: %s\n", key)
		fmt.Fprintf(w, "  • Normalized: %s\n", orUnknown(norm))
		if o.server != "" {
			fmt.Fprintf(w, "Gerrit Server: %s\n", o.server)
		}
	}
	if norm == "" {
		return exitFail
	}
	return exitOK
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
