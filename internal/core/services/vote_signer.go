package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/memberhall/elections/internal/core/domain"
)

// VoteSigner produces a deterministic signature over a vote's immutable
// fields so post-hoc tampering is detectable. The secret is injected at
// construction and must stay stable for the life of an election; rotating it
// invalidates verification of previously signed votes.
type VoteSigner struct {
	secret []byte
}

func NewVoteSigner(secret string) *VoteSigner {
	return &VoteSigner{secret: []byte(secret)}
}

func (s *VoteSigner) Sign(vote *domain.Vote) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(s.canonical(vote)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *VoteSigner) Verify(vote *domain.Vote) bool {
	if vote.Signature == "" {
		return false
	}
	return hmac.Equal([]byte(vote.Signature), []byte(s.Sign(vote)))
}

// canonical serializes the fields a signature covers. Field order is part of
// the signature contract; do not reorder.
func (s *VoteSigner) canonical(vote *domain.Vote) string {
	fields := []string{
		vote.ElectionID.String(),
		vote.CandidateID.String(),
		vote.Position,
		vote.Voter.Key(),
		fmt.Sprintf("%d", vote.Rank),
		fmt.Sprintf("%d", vote.VotedAt.UnixNano()),
	}
	if vote.ProxyAuthorizationID != nil {
		fields = append(fields, vote.ProxyAuthorizationID.String())
	}
	return strings.Join(fields, "|")
}
