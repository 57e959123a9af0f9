package domain

import (
	"time"

	"github.com/google/uuid"
)

type ElectionStatus string

const (
	StatusDraft  ElectionStatus = "draft"
	StatusOpen   ElectionStatus = "open"
	StatusClosed ElectionStatus = "closed"
)

type VotingMethod string

const (
	MethodSimpleMajority VotingMethod = "simple_majority"
	MethodApproval       VotingMethod = "approval"
	MethodSupermajority  VotingMethod = "supermajority"
	MethodRankedChoice   VotingMethod = "ranked_choice"
)

type VictoryCondition string

const (
	VictoryMostVotes     VictoryCondition = "most_votes"
	VictoryMajority      VictoryCondition = "majority"
	VictorySupermajority VictoryCondition = "supermajority"
	VictoryThreshold     VictoryCondition = "threshold"
)

type RunoffType string

const (
	RunoffTopTwo          RunoffType = "top_two"
	RunoffEliminateLowest RunoffType = "eliminate_lowest"
)

// DefaultSupermajorityPct applies when a supermajority election does not
// configure its own victory percentage.
const DefaultSupermajorityPct = 67.0

type Election struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Status         ElectionStatus `json:"status"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`

	// Positions is the ordered set of contested position names. Empty means
	// a single whole-ballot election.
	Positions []string `json:"positions,omitempty"`

	VotingMethod      VotingMethod     `json:"voting_method"`
	VictoryCondition  VictoryCondition `json:"victory_condition"`
	VictoryThreshold  *int             `json:"victory_threshold,omitempty"`
	VictoryPercentage *float64         `json:"victory_percentage,omitempty"`

	AnonymousVoting bool   `json:"anonymous_voting"`
	AnonymitySalt   string `json:"-"`

	MaxVotesPerPosition int `json:"max_votes_per_position"`

	// EligibleVoters is an explicit allow-list. Nil means every active member
	// of the organization may vote.
	EligibleVoters []uuid.UUID `json:"eligible_voters,omitempty"`

	// PositionEligibility maps a position name to the member role types
	// allowed to vote on it. Positions absent from the map are unrestricted.
	PositionEligibility map[string][]string `json:"position_eligibility,omitempty"`

	BallotItems []BallotItem `json:"ballot_items,omitempty"`

	// Attendees is the checked-in roster for attendance-gated ballot items.
	Attendees []uuid.UUID `json:"attendees,omitempty"`

	ResultsVisibleImmediately bool `json:"results_visible_immediately"`
	AllowWriteIns             bool `json:"allow_write_ins"`

	IsRunoff         bool       `json:"is_runoff"`
	ParentElectionID *uuid.UUID `json:"parent_election_id,omitempty"`
	RunoffRound      int        `json:"runoff_round"`
	EnableRunoffs    bool       `json:"enable_runoffs"`
	RunoffType       RunoffType `json:"runoff_type,omitempty"`
	MaxRunoffRounds  int        `json:"max_runoff_rounds"`

	ProxyAuthorizations []ProxyAuthorization `json:"proxy_authorizations,omitempty"`
	RollbackHistory     []RollbackRecord     `json:"rollback_history,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BallotItem is one line of a whole-ballot election: an approve/deny or
// candidate question with its own eligibility requirements.
type BallotItem struct {
	Position            string   `json:"position"`
	Title               string   `json:"title"`
	EligibleMemberTypes []string `json:"eligible_member_types,omitempty"`
	RequiresCheckIn     bool     `json:"requires_check_in"`
}

// RollbackRecord is one append-only entry of a status reversion.
type RollbackRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	PerformedBy uuid.UUID      `json:"performed_by"`
	FromStatus  ElectionStatus `json:"from_status"`
	ToStatus    ElectionStatus `json:"to_status"`
	Reason      string         `json:"reason"`
}

// WithinWindow reports whether now falls inside the voting window.
func (e *Election) WithinWindow(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// PositionNames returns the contested positions, or the single implicit
// empty-named position for a non-positional election.
func (e *Election) PositionNames() []string {
	if len(e.Positions) == 0 {
		return []string{""}
	}
	return e.Positions
}

func (e *Election) HasPosition(position string) bool {
	for _, p := range e.Positions {
		if p == position {
			return true
		}
	}
	return false
}

func (e *Election) BallotItem(position string) *BallotItem {
	for i := range e.BallotItems {
		if e.BallotItems[i].Position == position {
			return &e.BallotItems[i]
		}
	}
	return nil
}

func (e *Election) IsAttendee(memberID uuid.UUID) bool {
	for _, id := range e.Attendees {
		if id == memberID {
			return true
		}
	}
	return false
}

func (e *Election) Authorization(id uuid.UUID) *ProxyAuthorization {
	for i := range e.ProxyAuthorizations {
		if e.ProxyAuthorizations[i].ID == id {
			return &e.ProxyAuthorizations[i]
		}
	}
	return nil
}

// VotesPerPositionLimit returns the per-voter cap on active votes within one
// position. Zero means uncapped, the default for approval and ranked-choice
// ballots where one voter legitimately votes several candidates.
func (e *Election) VotesPerPositionLimit() int {
	if e.MaxVotesPerPosition > 0 {
		return e.MaxVotesPerPosition
	}
	if e.VotingMethod == MethodApproval || e.VotingMethod == MethodRankedChoice {
		return 0
	}
	return 1
}

// MultiVotePerPosition reports whether a voter may hold more than one active
// vote within a single position.
func (e *Election) MultiVotePerPosition() bool {
	return e.VotesPerPositionLimit() != 1
}

// VoteScopeKey is the storage uniqueness key for an active vote. For
// one-vote-per-position elections it spans (election, position, voter) so the
// store itself rejects a double vote; multi-vote elections widen the key by
// candidate and rely on the per-position cap for the count.
func (e *Election) VoteScopeKey(position string, voter VoterRef, candidateID uuid.UUID) string {
	key := e.ID.String() + "|" + position + "|" + voter.Key()
	if e.MultiVotePerPosition() {
		key += "|" + candidateID.String()
	}
	return key
}

// ResultsVisible is the gate in front of per-candidate tallies. Ballot-count
// statistics are exposed separately and are not gated.
func (e *Election) ResultsVisible(now time.Time) bool {
	if e.ResultsVisibleImmediately {
		return true
	}
	return e.Status == StatusClosed && now.After(e.EndDate)
}
