package util

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
)

// Checksum returns the hex md5 digest of everything read from r.
func Checksum(r io.Reader) (string, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("cannot hash content: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
