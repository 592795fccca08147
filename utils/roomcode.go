// utils/roomcode.go
package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Room codes are 6 characters from a 36-symbol alphabet — roughly 2x10^9
// combinations, enough that client-side random generation makes collisions
// negligible for an ephemeral relay.
const roomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLength is the fixed length of a shareable room code.
const RoomCodeLength = 6

// GenerateRoomCode generates a random room code.
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	max := big.NewInt(int64(len(roomCodeChars)))

	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = roomCodeChars[n.Int64()]
	}

	return string(code), nil
}

// NormalizeRoomCode upper-cases and trims a code so lookup is
// case-insensitive.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidRoomCode checks a normalized code: exactly 6 characters, A-Z0-9.
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, c := range code {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
