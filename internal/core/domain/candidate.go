package domain

import (
	"time"

	"github.com/google/uuid"
)

type Candidate struct {
	ID         uuid.UUID `json:"id"`
	ElectionID uuid.UUID `json:"election_id"`

	// MemberID is nil for write-ins and synthesized ballot choices.
	MemberID *uuid.UUID `json:"member_id,omitempty"`

	Name string `json:"name"`

	// Position is empty for non-positional elections.
	Position string `json:"position,omitempty"`

	Accepted  bool `json:"accepted"`
	IsWriteIn bool `json:"is_write_in"`

	// Synthesized marks shared Approve/Deny pseudo-candidates and write-in
	// rows created during ballot redemption; they are deduplicated by
	// (election, position, name) at the store.
	Synthesized bool `json:"synthesized,omitempty"`

	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// Votable reports whether a ballot may reference this candidate. Write-ins
// are exempt from the acceptance requirement.
func (c *Candidate) Votable() bool {
	return c.Accepted || c.IsWriteIn
}
