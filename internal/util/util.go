package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ParseBool accepts the yes/no spellings operators type into env files and sheets.
func ParseBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "ano", "yes", "true", "1", "y", "a":
		return true
	default:
		return false
	}
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
