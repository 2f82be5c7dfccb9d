package keymatch

import (
	"strings"

	"golang.org/x/crypto/ssh"
)

// SSHRecord builds a record from an authorized_keys style line ("ssh-ed25519 AAAA... comment")
// Identity is the SHA256 fingerprint, the legacy MD5 fingerprint rides along as an alias
func SSHRecord(authorizedKey string, valid bool) (Record, error) {
	pk, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(authorizedKey)))
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:     KindSSH,
		Identity: NormalizeSSH(ssh.FingerprintSHA256(pk)),
		Aliases:  []string{NormalizeSSH(ssh.FingerprintLegacyMD5(pk))},
		Valid:    valid,
		Label:    comment,
	}, nil
}

// SSHFingerprint returns the "SHA256:..." form of an authorized key line
func SSHFingerprint(authorizedKey string) (string, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(authorizedKey)))
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(pk), nil
}
