package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// VoterHasher maps a (member, election) pair to an anonymous voter handle.
// The mapping is deterministic for a given salt, so the same member always
// lands on the same handle within one election, and one-way: destroying the
// election's salt after close makes de-anonymization permanent.
type VoterHasher struct{}

func NewVoterHasher() *VoterHasher {
	return &VoterHasher{}
}

func (h *VoterHasher) Hash(memberID, electionID uuid.UUID, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(memberID.String()))
	mac.Write([]byte("|"))
	mac.Write([]byte(electionID.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
