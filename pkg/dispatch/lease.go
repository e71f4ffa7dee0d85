package dispatch

import (
	"time"

	"github.com/flashflow/flashflow/pkg/model"
)

// Claim is the manual lease sub-record, read off a video row. Zero value
// means no claim.
type Claim struct {
	By        string
	Role      model.Role
	At        *time.Time
	ExpiresAt *time.Time
}

func ClaimOf(v *model.Video) Claim {
	return Claim{By: v.ClaimedBy, Role: v.ClaimRole, At: v.ClaimedAt, ExpiresAt: v.ClaimExpiresAt}
}

// Active reports whether the claim exists and has not expired.
func (c Claim) Active(now time.Time) bool {
	return c.By != "" && c.ExpiresAt != nil && c.ExpiresAt.After(now)
}

func (c Claim) OwnedBy(actor string, now time.Time) bool {
	return c.Active(now) && c.By == actor
}

// Assignment is the dispatched lease sub-record.
type Assignment struct {
	To        string
	Role      model.Role
	State     model.AssignmentState
	At        *time.Time
	ExpiresAt *time.Time
}

func AssignmentOf(v *model.Video) Assignment {
	return Assignment{
		To:        v.AssignedTo,
		Role:      v.AssignedRole,
		State:     v.AssignmentState,
		At:        v.AssignedAt,
		ExpiresAt: v.AssignedExpiresAt,
	}
}

// Active reports whether the assignment is ASSIGNED and inside its TTL.
func (a Assignment) Active(now time.Time) bool {
	return a.State == model.AssignmentAssigned &&
		a.ExpiresAt != nil && a.ExpiresAt.After(now)
}

// LeaseManager composes the two lease sub-records and the role table into
// the authorization checks the executor and dispatcher share. All checks are
// advisory: the store's conditional writes are what actually preserve the
// single-holder invariant.
type LeaseManager struct {
	rules Rules
}

func NewLeaseManager(rules Rules) *LeaseManager {
	return &LeaseManager{rules: rules}
}

// CheckClaimOwnership passes when no live claim exists or the live claim
// belongs to actor.
func (m *LeaseManager) CheckClaimOwnership(v *model.Video, actor string, now time.Time) error {
	claim := ClaimOf(v)
	if !claim.Active(now) || claim.By == actor {
		return nil
	}
	return newError(KindAuthorization, CodeClaimNotOwned,
		"item is claimed by %s until %s", claim.By, claim.ExpiresAt.Format(time.RFC3339))
}

// CheckAssignmentOwnership passes when the item is unassigned or assigned to
// actor with a live lease. An expired lease is reported distinctly so callers
// can surface "reclaim and retry" instead of "not yours".
func (m *LeaseManager) CheckAssignmentOwnership(v *model.Video, actor string, now time.Time) error {
	a := AssignmentOf(v)
	if a.State != model.AssignmentAssigned || a.To == "" {
		return nil
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		if a.To == actor {
			return newError(KindAuthorization, CodeAssignmentExpired,
				"your assignment expired at %s", a.ExpiresAt.Format(time.RFC3339))
		}
		// Someone else's expired assignment never blocks.
		return nil
	}
	if a.To != actor {
		return newError(KindAuthorization, CodeNotAssignedToYou,
			"item is assigned to %s", a.To)
	}
	return nil
}

// CheckRoleMatch verifies the acting role may drive an item into target.
// Admin always passes.
func (m *LeaseManager) CheckRoleMatch(role model.Role, target model.VideoStatus) error {
	if role == model.RoleAdmin {
		return nil
	}
	for _, allowed := range m.rules.AllowedRoles[target] {
		if allowed == role {
			return nil
		}
	}
	return newError(KindAuthorization, CodeRoleMismatch,
		"role %q may not set status %q", role, target)
}

// AuthorizeForce gates the force flag itself: only administrators may bypass
// ownership and validation, rejected before any other check runs.
func (m *LeaseManager) AuthorizeForce(force, isAdmin bool) error {
	if force && !isAdmin {
		return newError(KindAuthorization, CodeForbidden, "force requires administrator privilege")
	}
	return nil
}
