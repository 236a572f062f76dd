package models

import "time"

// Plan is a user's subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// PlanLimits describes the fixed limits a plan grants. A value of -1 means
// unlimited.
type PlanLimits struct {
	StorageMB     int64
	MaxTeamspaces int64
	MaxMembers    int64
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:       {StorageMB: 5_120, MaxTeamspaces: 2, MaxMembers: 5},
	PlanPremium:    {StorageMB: 51_200, MaxTeamspaces: 10, MaxMembers: 25},
	PlanEnterprise: {StorageMB: 512_000, MaxTeamspaces: -1, MaxMembers: 100},
}

// LimitsForPlan returns the limit table entry for the plan. Unknown plans
// fall back to the free tier.
func LimitsForPlan(p Plan) PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

type User struct {
	ID            int64
	Plan          Plan
	UsedStorageMB int64
	CreatedAt     time.Time
}

// Limits returns the plan-derived limits for the user.
func (u *User) Limits() PlanLimits {
	return LimitsForPlan(u.Plan)
}
