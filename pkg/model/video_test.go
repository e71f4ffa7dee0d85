package model

import (
	"encoding/json"
	"testing"
)

func TestJSONBValueAndScan(t *testing.T) {
	original := JSONB{"role": "editor", "ttl_minutes": 60}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	data, ok := value.([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", value)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal value error: %v", err)
	}

	if decoded["role"] != "editor" {
		t.Fatalf("expected role editor, got %v", decoded["role"])
	}

	var scanned JSONB
	if err := scanned.Scan(data); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if scanned["role"] != "editor" {
		t.Fatalf("expected scanned role editor, got %v", scanned["role"])
	}
}

func TestJSONBNilValue(t *testing.T) {
	var empty JSONB
	value, err := empty.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil driver value for nil JSONB, got %v", value)
	}

	var scanned JSONB
	if err := scanned.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if scanned != nil {
		t.Fatalf("expected nil after scanning NULL, got %v", scanned)
	}
}

func TestJSONBGormDataType(t *testing.T) {
	value := JSONB{"ok": true}
	if value.GormDataType() != "jsonb" {
		t.Fatalf("expected jsonb data type, got %q", value.GormDataType())
	}
}

func TestVideoStatusTerminal(t *testing.T) {
	terminal := map[VideoStatus]bool{
		StatusNotRecorded: false,
		StatusRecorded:    false,
		StatusEdited:      false,
		StatusReadyToPost: false,
		StatusPosted:      true,
		StatusRejected:    true,
	}
	for status, want := range terminal {
		if status.Terminal() != want {
			t.Fatalf("%s: expected terminal=%v", status, want)
		}
	}
}

func TestVideoStatusValid(t *testing.T) {
	for _, status := range AllStatuses() {
		if !status.Valid() {
			t.Fatalf("%s must be valid", status)
		}
	}
	if VideoStatus("ARCHIVED").Valid() {
		t.Fatalf("unknown status must not validate")
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleRecorder, RoleEditor, RoleUploader, RoleAdmin} {
		if !role.Valid() {
			t.Fatalf("%s must be valid", role)
		}
	}
	if Role("viewer").Valid() {
		t.Fatalf("unknown role must not validate")
	}
}
