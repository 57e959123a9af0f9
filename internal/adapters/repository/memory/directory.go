package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/ports"
)

// Directory is an in-memory MemberDirectory. Members without a registered
// profile resolve to an active, voting-eligible default, which keeps simple
// setups and tests short.
type Directory struct {
	mu         sync.Mutex
	profiles   map[uuid.UUID]*ports.MemberProfile
	attendance map[uuid.UUID]float64
	members    []uuid.UUID
	settings   ports.OrgSettings
}

func NewDirectory() *Directory {
	return &Directory{
		profiles:   make(map[uuid.UUID]*ports.MemberProfile),
		attendance: make(map[uuid.UUID]float64),
		settings:   ports.OrgSettings{ProxyVotingEnabled: true},
	}
}

func (d *Directory) SetProfile(p *ports.MemberProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *Directory) SetAttendance(memberID uuid.UUID, pct float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attendance[memberID] = pct
}

func (d *Directory) SetMembers(ids ...uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members = ids
}

func (d *Directory) SetOrgSettings(s ports.OrgSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
}

func (d *Directory) Profile(_ context.Context, memberID uuid.UUID) (*ports.MemberProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.profiles[memberID]; ok {
		cp := *p
		return &cp, nil
	}
	return &ports.MemberProfile{
		ID:          memberID,
		Active:      true,
		RoleType:    "member",
		MemberType:  "regular",
		TierCanVote: true,
	}, nil
}

func (d *Directory) AttendancePercent(_ context.Context, memberID uuid.UUID, _ int) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attendance[memberID], nil
}

func (d *Directory) ActiveMemberIDs(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uuid.UUID(nil), d.members...), nil
}

func (d *Directory) Organization(_ context.Context, _ uuid.UUID) (*ports.OrgSettings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := d.settings
	return &cp, nil
}
