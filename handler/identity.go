package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// identityBits is the amount of OS entropy backing every generated socket
// name: 512 bits.
const identityBits = 512

// randomHexIdentity returns a hex-encoded random identity truncated to at
// most maxLen characters. Used for abstract-namespace socket names, where
// the budget is UNIX_PATH_MAX-2.
//
// crypto/rand stays on the standard library rather than reaching for a
// pack dependency such as google/uuid: the identity is raw CSPRNG entropy
// rendered as hex or base64, not a structured 128-bit UUID, so a UUID
// generator cannot produce this value (see DESIGN.md).
func randomHexIdentity(maxLen int) string {
	buf := make([]byte, identityBits/8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken
		// beyond recovery; there is no meaningful fallback for a socket
		// name that must be unguessable.
		panic("passenger: crypto/rand unavailable: " + err.Error())
	}
	s := hex.EncodeToString(buf)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// randomBase64Identity returns a URL-safe base64 identity, '+' and '/'
// stripped, truncated to at most maxLen characters. Used for
// filesystem-backed socket names.
func randomBase64Identity(maxLen int) string {
	buf := make([]byte, identityBits/8)
	if _, err := rand.Read(buf); err != nil {
		panic("passenger: crypto/rand unavailable: " + err.Error())
	}
	s := base64.URLEncoding.EncodeToString(buf)
	s = strings.NewReplacer("+", "", "/", "", "=", "").Replace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
