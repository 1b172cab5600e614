package syftmsg

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ACLEntry is one ACL file in apply order.
type ACLEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// ACLManifest announces the ACL files of a datasite, in the order they
// must be applied, scoped to one recipient principal.
type ACLManifest struct {
	Version   int        `json:"version"`
	Datasite  string     `json:"datasite"`
	For       string     `json:"for"`
	ForHash   string     `json:"for_hash"`
	Generated time.Time  `json:"generated"`
	ACLOrder  []ACLEntry `json:"acl_order"`
}

// HashPrincipal derives the recipient tag used in manifest routing. The
// wildcard principal maps to "public"; everyone else gets a short sha256.
func HashPrincipal(principal string) string {
	if principal == "*" {
		return "public"
	}
	h := sha256.Sum256([]byte(principal))
	return hex.EncodeToString(h[:8])
}

func NewACLManifest(datasite, forPrincipal string, aclOrder []ACLEntry) *ACLManifest {
	return &ACLManifest{
		Version:   1,
		Datasite:  datasite,
		For:       forPrincipal,
		ForHash:   HashPrincipal(forPrincipal),
		Generated: time.Now().UTC(),
		ACLOrder:  aclOrder,
	}
}

func NewACLManifestMessage(manifest *ACLManifest) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgACLManifest,
		Data: *manifest,
	}
}
