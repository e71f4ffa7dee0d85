package dispatch

import (
	"testing"
	"time"

	"github.com/flashflow/flashflow/pkg/model"
)

func TestClaimActive(t *testing.T) {
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)

	cases := []struct {
		name  string
		claim Claim
		want  bool
	}{
		{"no claim", Claim{}, false},
		{"live", Claim{By: "alice", ExpiresAt: &future}, true},
		{"expired", Claim{By: "alice", ExpiresAt: &past}, false},
		{"holder without expiry", Claim{By: "alice"}, false},
	}
	for _, c := range cases {
		if got := c.claim.Active(testNow); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestAssignmentActive(t *testing.T) {
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)

	cases := []struct {
		name       string
		assignment Assignment
		want       bool
	}{
		{"unassigned", Assignment{State: model.AssignmentUnassigned}, false},
		{"live", Assignment{State: model.AssignmentAssigned, To: "bob", ExpiresAt: &future}, true},
		{"expired", Assignment{State: model.AssignmentAssigned, To: "bob", ExpiresAt: &past}, false},
		{"completed", Assignment{State: model.AssignmentCompleted, To: "bob", ExpiresAt: &future}, false},
	}
	for _, c := range cases {
		if got := c.assignment.Active(testNow); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestCheckAssignmentOwnership(t *testing.T) {
	m := NewLeaseManager(DefaultRules())
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)

	unassigned := &model.Video{AssignmentState: model.AssignmentUnassigned}
	if err := m.CheckAssignmentOwnership(unassigned, "alice", testNow); err != nil {
		t.Fatalf("unassigned item must pass: %v", err)
	}

	own := &model.Video{AssignmentState: model.AssignmentAssigned, AssignedTo: "alice", AssignedExpiresAt: &future}
	if err := m.CheckAssignmentOwnership(own, "alice", testNow); err != nil {
		t.Fatalf("own live assignment must pass: %v", err)
	}

	other := &model.Video{AssignmentState: model.AssignmentAssigned, AssignedTo: "bob", AssignedExpiresAt: &future}
	if err := m.CheckAssignmentOwnership(other, "alice", testNow); CodeOf(err) != CodeNotAssignedToYou {
		t.Fatalf("expected NOT_ASSIGNED_TO_YOU, got %v", err)
	}

	ownExpired := &model.Video{AssignmentState: model.AssignmentAssigned, AssignedTo: "alice", AssignedExpiresAt: &past}
	if err := m.CheckAssignmentOwnership(ownExpired, "alice", testNow); CodeOf(err) != CodeAssignmentExpired {
		t.Fatalf("expected ASSIGNMENT_EXPIRED, got %v", err)
	}

	otherExpired := &model.Video{AssignmentState: model.AssignmentAssigned, AssignedTo: "bob", AssignedExpiresAt: &past}
	if err := m.CheckAssignmentOwnership(otherExpired, "alice", testNow); err != nil {
		t.Fatalf("someone else's expired assignment must not block: %v", err)
	}
}

func TestCheckClaimOwnership(t *testing.T) {
	m := NewLeaseManager(DefaultRules())
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)

	free := &model.Video{}
	if err := m.CheckClaimOwnership(free, "alice", testNow); err != nil {
		t.Fatalf("unclaimed item must pass: %v", err)
	}

	own := &model.Video{ClaimedBy: "alice", ClaimExpiresAt: &future}
	if err := m.CheckClaimOwnership(own, "alice", testNow); err != nil {
		t.Fatalf("own claim must pass: %v", err)
	}

	other := &model.Video{ClaimedBy: "bob", ClaimExpiresAt: &future}
	if err := m.CheckClaimOwnership(other, "alice", testNow); CodeOf(err) != CodeClaimNotOwned {
		t.Fatalf("expected CLAIM_NOT_OWNED, got %v", err)
	}

	expired := &model.Video{ClaimedBy: "bob", ClaimExpiresAt: &past}
	if err := m.CheckClaimOwnership(expired, "alice", testNow); err != nil {
		t.Fatalf("an expired claim must not block: %v", err)
	}
}

func TestCheckRoleMatch(t *testing.T) {
	m := NewLeaseManager(DefaultRules())

	cases := []struct {
		role   model.Role
		target model.VideoStatus
		ok     bool
	}{
		{model.RoleRecorder, model.StatusRecorded, true},
		{model.RoleEditor, model.StatusEdited, true},
		{model.RoleEditor, model.StatusReadyToPost, true},
		{model.RoleUploader, model.StatusPosted, true},
		{model.RoleRecorder, model.StatusPosted, false},
		{model.RoleUploader, model.StatusEdited, false},
		{model.RoleEditor, model.StatusRejected, true},
		{model.RoleAdmin, model.StatusPosted, true},
		{model.RoleAdmin, model.StatusNotRecorded, true},
	}
	for _, c := range cases {
		err := m.CheckRoleMatch(c.role, c.target)
		if c.ok && err != nil {
			t.Fatalf("%s -> %s: expected pass, got %v", c.role, c.target, err)
		}
		if !c.ok && CodeOf(err) != CodeRoleMismatch {
			t.Fatalf("%s -> %s: expected ROLE_MISMATCH, got %v", c.role, c.target, err)
		}
	}
}

func TestAuthorizeForce(t *testing.T) {
	m := NewLeaseManager(DefaultRules())

	if err := m.AuthorizeForce(false, false); err != nil {
		t.Fatalf("no force must pass: %v", err)
	}
	if err := m.AuthorizeForce(true, true); err != nil {
		t.Fatalf("admin force must pass: %v", err)
	}
	if err := m.AuthorizeForce(true, false); CodeOf(err) != CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}
