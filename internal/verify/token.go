// Package verify issues and checks the stateless tokens in verification links and
// applies the resulting state change to registrations.
package verify

import (
	"crypto/hmac"

	"eventreg/internal/models"
	"eventreg/internal/util"
)

// Identity scopes a participant's address to one spreadsheet so a link issued for one
// event does not verify the same person at another.
func Identity(tableID, email string) string {
	return tableID + ":" + models.NormalizeEmail(email)
}

// Token is a keyed digest of identity. Nothing is stored: a token stays valid until
// the secret changes.
func Token(secret, identity string) string {
	return util.HMACSHA256Hex(secret, identity)
}

func IsValid(candidate, secret, identity string) bool {
	if candidate == "" {
		return false
	}
	return hmac.Equal([]byte(candidate), []byte(Token(secret, identity)))
}
