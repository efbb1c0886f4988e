package main

import (
	"encoding/hex"
	"errors"
)

// shortID truncates an identifier for logging.
func shortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16]
}

// decodeHexKey decodes a 64-character hex secret key.
func decodeHexKey(s string) ([]byte, error) {
	if len(s) != 64 {
		return nil, errors.New("key must be 64 hex characters")
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.New("key is not valid hex")
	}
	return key, nil
}
