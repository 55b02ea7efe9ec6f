package tables

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const checksumPrefix = "sha256:"

// Checksum returns the "sha256:<hex>" digest of an encoded artifact.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return checksumPrefix + hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches a digest produced by Checksum.
func VerifyChecksum(data []byte, expected string) bool {
	if !strings.HasPrefix(expected, checksumPrefix) {
		return false
	}
	return Checksum(data) == expected
}
