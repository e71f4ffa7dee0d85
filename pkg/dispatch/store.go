package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/flashflow/flashflow/pkg/model"
)

// ErrNotFound is returned by VideoStore implementations for unknown ids.
var ErrNotFound = errors.New("work item not found")

// AssignmentGrant carries the fields of a fresh assignment lease. The store
// applies it conditionally: the grant succeeds only while the row holds no
// live assignment.
type AssignmentGrant struct {
	AssignedTo string
	Role       model.Role
	Lane       model.VideoStatus
	ExpiresAt  time.Time
	TTLMinutes int
	Priority   float64
}

// ClaimGrant carries the fields of a fresh manual claim lease.
type ClaimGrant struct {
	ClaimedBy string
	Role      model.Role
	ExpiresAt time.Time
}

// VideoStore is the conditional-update contract the engine requires from the
// record store. Lease-granting methods are compare-and-swap: they must apply
// only while the row still satisfies the grant precondition, and report
// whether they did. Ownership is only as strong as this guarantee.
type VideoStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// ListLane returns up to limit items in the given status whose
	// assignment is UNASSIGNED, EXPIRED, or past its expiry at now.
	ListLane(ctx context.Context, lane model.VideoStatus, now time.Time, limit int) ([]model.Video, error)

	// ListByStatus returns items in a status regardless of lease state.
	ListByStatus(ctx context.Context, status model.VideoStatus, limit int) ([]model.Video, error)

	// Update applies field updates unconditionally to one row.
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error

	// TryAssign grants an assignment iff the row is still in lane status and
	// has no live assignment at now (or force displaces a live one).
	TryAssign(ctx context.Context, id uuid.UUID, grant AssignmentGrant, now time.Time, force bool) (bool, error)

	// TryClaim grants a manual claim iff no live claim by another actor
	// exists at now.
	TryClaim(ctx context.Context, id uuid.UUID, grant ClaimGrant, now time.Time) (bool, error)

	// ReleaseClaim clears the claim lease iff held by actor.
	ReleaseClaim(ctx context.Context, id uuid.UUID, actor string) (bool, error)

	// ReleaseExpiredClaims clears every claim lease whose expiry passed,
	// returning affected ids. Idempotent.
	ReleaseExpiredClaims(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// ExpireAssignments marks ASSIGNED leases past expiry as EXPIRED,
	// optionally scoped to one lane, returning affected ids. Idempotent.
	ExpireAssignments(ctx context.Context, lane *model.VideoStatus, now time.Time) ([]uuid.UUID, error)
}

// EventStore appends to the immutable audit log. Appends are best-effort
// from the engine's point of view: a failed append never fails the primary
// operation.
type EventStore interface {
	Append(ctx context.Context, event *model.WorkEvent) error
}

// Notifier delivers fire-and-forget notifications to workers. Failures are
// the implementation's problem to log; the engine never sees them.
type Notifier interface {
	Notify(ctx context.Context, userID, kind string, videoID uuid.UUID, payload map[string]interface{})
}

// Gate is the billing/credit collaborator consulted before any lease logic
// runs. An error means the gate is unreachable, not a denial.
type Gate interface {
	CanAct(ctx context.Context, actorID string, isAdmin bool) (bool, error)
}

// NopNotifier drops notifications; used where delivery is not wired.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, uuid.UUID, map[string]interface{}) {}

// AllowAllGate approves every actor; used where billing gating is disabled.
type AllowAllGate struct{}

func (AllowAllGate) CanAct(context.Context, string, bool) (bool, error) { return true, nil }
