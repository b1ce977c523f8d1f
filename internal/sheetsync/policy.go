package sheetsync

import (
	"fmt"
	"strconv"
	"strings"

	"eventreg/internal/models"
)

// CarryOverKey selects how state survives the delete-and-recreate of a pull.
type CarryOverKey string

const (
	// CarryByRow matches registrations by sheet row. Inserting or removing rows above a
	// confirmed one loses its state; that is the historical behavior and stays the default.
	CarryByRow CarryOverKey = "row"
	// CarryByEmail matches by normalized e-mail address.
	CarryByEmail CarryOverKey = "email"
)

func ParseCarryOverKey(s string) (CarryOverKey, error) {
	switch CarryOverKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", CarryByRow:
		return CarryByRow, nil
	case CarryByEmail:
		return CarryByEmail, nil
	default:
		return "", fmt.Errorf("unknown carry-over key %q (want row or email)", s)
	}
}

type carriedState struct {
	Confirmed bool
	Verified  bool
}

// Policy is the reconciliation policy applied across a full re-import.
type Policy struct {
	Key CarryOverKey
}

// Snapshot records the state of every confirmed or verified registration.
// It must be taken before the registrations are deleted.
func (p Policy) Snapshot(regs []models.Registration) map[string]carriedState {
	snap := map[string]carriedState{}
	for _, r := range regs {
		if !r.Confirmed && !r.Verified {
			continue
		}
		k := p.key(r)
		if k == "" {
			continue
		}
		st := snap[k]
		st.Confirmed = st.Confirmed || r.Confirmed
		st.Verified = st.Verified || r.Verified
		snap[k] = st
	}
	return snap
}

// Apply copies carried state onto a freshly imported registration and reports whether any was found.
func (p Policy) Apply(snap map[string]carriedState, reg *models.Registration) bool {
	k := p.key(*reg)
	if k == "" {
		return false
	}
	st, ok := snap[k]
	if !ok {
		return false
	}
	reg.Confirmed = reg.Confirmed || st.Confirmed
	reg.Verified = reg.Verified || st.Verified
	return true
}

func (p Policy) key(r models.Registration) string {
	if p.Key == CarryByEmail {
		return models.NormalizeEmail(r.Fields.Email)
	}
	return strconv.Itoa(r.Row)
}
