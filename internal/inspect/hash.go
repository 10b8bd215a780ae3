package inspect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for journal entry IDs. The version suffix leaves room to
// change the hashed fields later without colliding with old rows.
const (
	DomainInit   = "tstate/init/v1"
	DomainChange = "tstate/change/v1"
)

// hashWithDomain returns hex(SHA256(domain + 0x00 + data)). The separator
// keeps domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of e. Replaying the same
// session produces the same IDs, so journal writes are idempotent.
func EventID(e Event) (string, error) {
	obj := map[string]any{
		"session": e.Session,
		"store":   e.Store,
		"seq":     e.Seq,
		"action":  e.Action.Type,
		"fields":  e.Action.Fields,
		"current": e.Current,
	}
	domain := DomainInit
	if e.Kind == KindChange {
		domain = DomainChange
		obj["prev"] = e.Prev
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}
