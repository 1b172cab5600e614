package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/denisbrodbeck/machineid"
)

// HWID identifies this install to the server. It is an app-scoped hash of
// the machine id, never the raw id itself.
var HWID = initHWID()

func initHWID() string {
	id, err := machineid.ProtectedID("syftbox")
	if err == nil {
		return id
	}

	// Some containers and stripped-down systems have no machine id.
	// Fall back to a stable hash of the hostname.
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	sum := sha256.Sum256([]byte("syftbox." + host))
	return hex.EncodeToString(sum[:])
}
