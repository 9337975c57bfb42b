// Package id generates compact random identifiers.
//
// IDs are version 4 UUIDs encoded as 26-character lowercase base32 without
// padding, which keeps them URL- and cookie-safe while preserving 122 bits
// of entropy.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new random identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}
