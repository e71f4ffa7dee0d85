package dispatch

import (
	"testing"

	"github.com/flashflow/flashflow/pkg/model"
)

func TestValidateTransitionCompleteness(t *testing.T) {
	cases := []struct {
		name     string
		target   model.VideoStatus
		video    model.Video
		wantCode string
	}{
		{"recorded always allowed", model.StatusRecorded, model.Video{}, ""},
		{"rejected always allowed", model.StatusRejected, model.Video{}, ""},
		{"edited without media", model.StatusEdited, model.Video{}, CodeMissingFinalMedia},
		{"edited with final media", model.StatusEdited,
			model.Video{FinalMediaURL: "https://cdn/v.mp4"}, ""},
		{"edited with alt media only", model.StatusEdited,
			model.Video{AltMediaURL: "https://cdn/alt.mp4"}, ""},
		{"edited script-not-required waives media", model.StatusEdited,
			model.Video{ScriptNotRequired: true}, ""},
		{"ready without locked script", model.StatusReadyToPost, model.Video{}, CodeMissingLockedScript},
		{"ready with locked script", model.StatusReadyToPost,
			model.Video{ScriptLocked: true}, ""},
		{"ready script-not-required", model.StatusReadyToPost,
			model.Video{ScriptNotRequired: true}, ""},
		{"posted without fields", model.StatusPosted, model.Video{}, CodeMissingPostingFields},
		{"posted missing platform", model.StatusPosted,
			model.Video{PostedURL: "https://tube/1"}, CodeMissingPostingFields},
		{"posted complete", model.StatusPosted,
			model.Video{PostedURL: "https://tube/1", PostedPlatform: "youtube"}, ""},
		{"unknown status", model.VideoStatus("LOST"), model.Video{}, CodeInvalidStatus},
	}

	for _, c := range cases {
		video := c.video
		err := ValidateTransition(c.target, &video, false)
		if c.wantCode == "" && err != nil {
			t.Fatalf("%s: expected pass, got %v", c.name, err)
		}
		if c.wantCode != "" && CodeOf(err) != c.wantCode {
			t.Fatalf("%s: expected %s, got %v", c.name, c.wantCode, err)
		}
	}
}

func TestValidateTransitionForceBypassesCompleteness(t *testing.T) {
	video := model.Video{}
	if err := ValidateTransition(model.StatusPosted, &video, true); err != nil {
		t.Fatalf("force must bypass completeness: %v", err)
	}
	// Force never legitimizes a status outside the machine.
	if err := ValidateTransition(model.VideoStatus("LOST"), &video, true); CodeOf(err) != CodeInvalidStatus {
		t.Fatalf("expected INVALID_RECORDING_STATUS under force, got %v", err)
	}
}

func TestCanActNext(t *testing.T) {
	locked := model.Video{ScriptLocked: true}
	noScript := model.Video{ScriptNotRequired: true}
	bare := model.Video{}
	withMedia := model.Video{FinalMediaURL: "https://cdn/v.mp4"}

	if !CanActNext(model.RoleRecorder, &bare) {
		t.Fatalf("recorder can always start")
	}
	if CanActNext(model.RoleEditor, &bare) {
		t.Fatalf("editor needs a usable script")
	}
	if !CanActNext(model.RoleEditor, &locked) || !CanActNext(model.RoleEditor, &noScript) {
		t.Fatalf("locked or waived script unblocks the editor")
	}
	if CanActNext(model.RoleUploader, &bare) {
		t.Fatalf("uploader needs media")
	}
	if !CanActNext(model.RoleUploader, &withMedia) {
		t.Fatalf("media unblocks the uploader")
	}
	if !CanActNext(model.RoleAdmin, &bare) {
		t.Fatalf("admin can always act")
	}
	if CanActNext(model.Role("viewer"), &bare) {
		t.Fatalf("unknown roles never act")
	}
}
