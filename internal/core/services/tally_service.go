package services

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// tallyService computes per-candidate results under the election's voting
// method and victory condition. It is pure and idempotent: results depend
// only on the inputs, never on insertion order.
type tallyService struct{}

func NewTallyService() ports.TallyService {
	return &tallyService{}
}

func (t *tallyService) Tally(election *domain.Election, candidates []domain.Candidate, votes []domain.Vote) *domain.ElectionResults {
	active := make([]domain.Vote, 0, len(votes))
	for _, v := range votes {
		if v.Active() {
			active = append(active, v)
		}
	}

	results := &domain.ElectionResults{
		ElectionID:     election.ID,
		TotalVotes:     len(active),
		DistinctVoters: distinctVoters(active),
		ComputedAt:     time.Now(),
	}

	results.Overall = t.tallyScope(election, candidates, active, "")

	for _, position := range election.Positions {
		var cands []domain.Candidate
		for _, c := range candidates {
			if c.Position == position {
				cands = append(cands, c)
			}
		}
		var scoped []domain.Vote
		for _, v := range active {
			if v.Position == position {
				scoped = append(scoped, v)
			}
		}
		pr := t.tallyScope(election, cands, scoped, position)
		results.ByPosition = append(results.ByPosition, pr)
	}

	return results
}

func (t *tallyService) tallyScope(election *domain.Election, candidates []domain.Candidate, votes []domain.Vote, position string) domain.PositionResult {
	if election.VotingMethod == domain.MethodRankedChoice {
		return t.instantRunoff(candidates, votes, position)
	}
	return t.countAndSelect(election, candidates, votes, position)
}

// countAndSelect is the non-ranked path: raw counts, then winners under the
// election's victory condition.
func (t *tallyService) countAndSelect(election *domain.Election, candidates []domain.Candidate, votes []domain.Vote, position string) domain.PositionResult {
	counts := make(map[uuid.UUID]int)
	for _, v := range votes {
		counts[v.CandidateID]++
	}

	// Approval ballots let one voter approve several candidates, so the
	// percentage denominator is distinct voters, not ballot count.
	denominator := len(votes)
	if election.VotingMethod == domain.MethodApproval {
		denominator = distinctVoters(votes)
	}

	out := domain.PositionResult{Position: position}
	for _, c := range candidates {
		count := counts[c.ID]
		pct := 0.0
		if denominator > 0 {
			pct = float64(count) / float64(denominator) * 100
		}
		out.Results = append(out.Results, domain.CandidateResult{
			CandidateID: c.ID,
			Name:        c.Name,
			Position:    c.Position,
			VoteCount:   count,
			Percentage:  pct,
		})
	}

	t.markWinners(election, &out, len(votes))
	sortResults(out.Results)
	return out
}

func (t *tallyService) markWinners(election *domain.Election, pr *domain.PositionResult, totalVotes int) {
	switch election.VictoryCondition {
	case domain.VictoryMostVotes:
		max := 0
		for _, r := range pr.Results {
			if r.VoteCount > max {
				max = r.VoteCount
			}
		}
		if max == 0 {
			return
		}
		for i := range pr.Results {
			if pr.Results[i].VoteCount == max {
				pr.Results[i].IsWinner = true
				pr.HasWinner = true
			}
		}

	case domain.VictoryMajority:
		needed := totalVotes/2 + 1
		for i := range pr.Results {
			if pr.Results[i].VoteCount >= needed {
				pr.Results[i].IsWinner = true
				pr.HasWinner = true
			}
		}

	case domain.VictorySupermajority:
		required := domain.DefaultSupermajorityPct
		if election.VictoryPercentage != nil {
			required = *election.VictoryPercentage
		}
		for i := range pr.Results {
			if pr.Results[i].VoteCount > 0 && pr.Results[i].Percentage >= required {
				pr.Results[i].IsWinner = true
				pr.HasWinner = true
			}
		}

	case domain.VictoryThreshold:
		for i := range pr.Results {
			met := false
			switch {
			case election.VictoryThreshold != nil:
				met = pr.Results[i].VoteCount >= *election.VictoryThreshold
			case election.VictoryPercentage != nil:
				met = pr.Results[i].VoteCount > 0 && pr.Results[i].Percentage >= *election.VictoryPercentage
			}
			if met {
				pr.Results[i].IsWinner = true
				pr.HasWinner = true
			}
		}
	}
}

// instantRunoff runs ranked-choice elimination rounds. Each round counts
// every active ballot's first surviving choice; a candidate exceeding half
// the counted ballots wins. Otherwise the candidate with the fewest votes is
// eliminated, lowest id first among ties. If no majority emerges within
// candidate-count rounds, the final-round leader wins as a fallback.
func (t *tallyService) instantRunoff(candidates []domain.Candidate, votes []domain.Vote, position string) domain.PositionResult {
	out := domain.PositionResult{Position: position}

	candByID := make(map[uuid.UUID]domain.Candidate, len(candidates))
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		candByID[c.ID] = c
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	ballots := groupBallots(votes)

	eliminated := make(map[uuid.UUID]bool)
	lastCounts := make(map[uuid.UUID]int)
	var winner *uuid.UUID
	finalCounted := 0

	for round := 1; round <= len(candidates) && winner == nil; round++ {
		counts := make(map[uuid.UUID]int)
		counted := 0
		for _, ballot := range ballots {
			for _, choice := range ballot {
				if _, ok := candByID[choice]; !ok {
					continue
				}
				if eliminated[choice] {
					continue
				}
				counts[choice]++
				counted++
				break
			}
		}

		rec := domain.IRVRound{Round: round, Counts: counts}
		finalCounted = counted
		for _, id := range ids {
			if !eliminated[id] {
				lastCounts[id] = counts[id]
			}
		}

		for _, id := range ids {
			if !eliminated[id] && counts[id]*2 > counted && counted > 0 {
				w := id
				winner = &w
				break
			}
		}

		activeLeft := 0
		var lastStanding uuid.UUID
		for _, id := range ids {
			if !eliminated[id] {
				activeLeft++
				lastStanding = id
			}
		}
		if winner == nil && activeLeft == 1 {
			w := lastStanding
			winner = &w
		}

		if winner == nil {
			// Eliminate exactly one candidate: the lowest id among those
			// holding the minimum count.
			min := -1
			for _, id := range ids {
				if eliminated[id] {
					continue
				}
				if min == -1 || counts[id] < min {
					min = counts[id]
				}
			}
			for _, id := range ids {
				if !eliminated[id] && counts[id] == min {
					eliminated[id] = true
					rec.Eliminated = append(rec.Eliminated, id)
					break
				}
			}
		}

		out.Rounds = append(out.Rounds, rec)
	}

	// Fallback: no majority after every round, the final-round leader wins.
	if winner == nil && len(candidates) > 0 {
		max := -1
		for _, id := range ids {
			if eliminated[id] {
				continue
			}
			if lastCounts[id] > max {
				max = lastCounts[id]
				w := id
				winner = &w
			}
		}
	}

	for _, id := range ids {
		c := candByID[id]
		count := lastCounts[id]
		pct := 0.0
		if finalCounted > 0 {
			pct = float64(count) / float64(finalCounted) * 100
		}
		r := domain.CandidateResult{
			CandidateID: c.ID,
			Name:        c.Name,
			Position:    c.Position,
			VoteCount:   count,
			Percentage:  pct,
		}
		if winner != nil && *winner == id {
			r.IsWinner = true
			out.HasWinner = true
		}
		out.Results = append(out.Results, r)
	}
	sortResults(out.Results)
	return out
}

// groupBallots collects each voter's ranked choices, ascending by rank with
// unranked (zero) votes last. Order is fully deterministic: ballot iteration
// is by sorted voter key and in-ballot ties break by candidate id.
func groupBallots(votes []domain.Vote) [][]uuid.UUID {
	perVoter := make(map[string][]domain.Vote)
	for _, v := range votes {
		key := v.Voter.Key()
		perVoter[key] = append(perVoter[key], v)
	}

	keys := make([]string, 0, len(perVoter))
	for k := range perVoter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ballots := make([][]uuid.UUID, 0, len(perVoter))
	for _, k := range keys {
		vs := perVoter[k]
		sort.Slice(vs, func(i, j int) bool {
			ri, rj := effectiveRank(vs[i].Rank), effectiveRank(vs[j].Rank)
			if ri != rj {
				return ri < rj
			}
			return vs[i].CandidateID.String() < vs[j].CandidateID.String()
		})
		choices := make([]uuid.UUID, 0, len(vs))
		for _, v := range vs {
			choices = append(choices, v.CandidateID)
		}
		ballots = append(ballots, choices)
	}
	return ballots
}

func effectiveRank(rank int) int {
	if rank <= 0 {
		return 1 << 30
	}
	return rank
}

func distinctVoters(votes []domain.Vote) int {
	seen := make(map[string]struct{})
	for _, v := range votes {
		seen[v.Voter.Key()] = struct{}{}
	}
	return len(seen)
}

func sortResults(results []domain.CandidateResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		return results[i].Name < results[j].Name
	})
}
