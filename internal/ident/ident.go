// Package ident derives the stable container id from a caller-visible
// handle, and mints fresh handles when the caller doesn't supply one.
package ident

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const idPrefix = "c_"

// idNibbles is the number of hex nibbles of the SHA-1 digest kept in the id
// (60 bits), giving a total id length of len(idPrefix) + idNibbles == 17.
const idNibbles = 15

// DeriveID returns the deterministic container id for handle: "c_" followed
// by the first 15 uppercase hex digits of the SHA-1 of the UTF-8 handle.
func DeriveID(handle string) string {
	sum := sha1.Sum([]byte(handle))
	full := strings.ToUpper(hex.EncodeToString(sum[:]))
	return idPrefix + full[:idNibbles]
}

// GenerateHandle mints a fresh 32-character lowercase hex handle from 16
// bytes of crypto/rand, used when a caller creates a container without
// naming one explicitly.
func GenerateHandle() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
