package keymatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// GPGKey is the registry view of one OpenPGP public key
type GPGKey struct {
	ID          string // long key id as reported by the server
	Fingerprint string // may contain spaces
	Armored     string // ASCII armored public key, optional
	ServerValid bool   // false when the server flags the key as bad, revoked or expired
}

// GPGRecords expands a key into records: the primary key plus every signing subkey
// When the armored key parses, its own revocation and expiry state also applies
func GPGRecords(k GPGKey, now time.Time) []Record {
	primary := Record{
		Kind:     KindGPG,
		Identity: NormalizeGPG(k.Fingerprint),
		Valid:    k.ServerValid,
		Label:    strings.TrimSpace(k.ID),
	}
	if id := NormalizeGPG(k.ID); id != "" {
		primary.Aliases = append(primary.Aliases, id)
	}

	entity := parseArmored(k.Armored)
	if entity == nil {
		if primary.Identity == "" && len(primary.Aliases) == 0 {
			return nil
		}
		return []Record{primary}
	}

	if primary.Identity == "" {
		primary.Identity = fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
	}
	primary.Aliases = append(primary.Aliases, fmt.Sprintf("%016X", entity.PrimaryKey.KeyId))
	if entity.Revoked(now) || primaryExpired(entity, now) {
		primary.Valid = false
	}

	out := []Record{primary}
	for _, sk := range entity.Subkeys {
		if sk.PublicKey == nil || sk.Sig == nil || !sk.Sig.FlagsValid || !sk.Sig.FlagSign {
			continue
		}
		out = append(out, Record{
			Kind:     KindGPG,
			Identity: fmt.Sprintf("%X", sk.PublicKey.Fingerprint),
			Aliases:  []string{fmt.Sprintf("%016X", sk.PublicKey.KeyId)},
			Valid:    primary.Valid && !sk.Revoked(now) && !sk.PublicKey.KeyExpired(sk.Sig, now),
			Label:    primary.Label,
		})
	}
	return out
}

func parseArmored(armored string) *openpgp.Entity {
	if strings.TrimSpace(armored) == "" {
		return nil
	}
	list, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil || len(list) == 0 {
		return nil
	}
	return list[0]
}

func primaryExpired(e *openpgp.Entity, now time.Time) bool {
	ident := e.PrimaryIdentity()
	if ident == nil || ident.SelfSignature == nil {
		return false
	}
	return e.PrimaryKey.KeyExpired(ident.SelfSignature, now)
}
