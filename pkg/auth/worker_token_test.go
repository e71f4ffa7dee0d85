package auth

import (
	"testing"
	"time"

	"github.com/flashflow/flashflow/pkg/model"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewWorkerTokenManager([]byte("secret"), time.Hour)

	token, err := m.Generate("worker-1", model.RoleEditor, false)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if claims.ActorID != "worker-1" {
		t.Fatalf("expected actor worker-1, got %q", claims.ActorID)
	}
	if claims.Role != string(model.RoleEditor) {
		t.Fatalf("expected editor role, got %q", claims.Role)
	}
	if claims.Admin {
		t.Fatalf("expected non-admin claims")
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewWorkerTokenManager([]byte("secret"), time.Hour)
	verifier := NewWorkerTokenManager([]byte("other"), time.Hour)

	token, err := issuer.Generate("worker-1", model.RoleRecorder, false)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	if _, err := verifier.Validate(token); err == nil {
		t.Fatalf("expected validation failure for wrong key")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewWorkerTokenManager([]byte("secret"), -time.Minute)

	token, err := m.Generate("worker-1", model.RoleRecorder, false)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	if _, err := m.Validate(token); err == nil {
		t.Fatalf("expected validation failure for expired token")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewWorkerTokenManager([]byte("secret"), time.Hour)
	if _, err := m.Validate("not-a-token"); err == nil {
		t.Fatalf("expected validation failure for malformed token")
	}
}
