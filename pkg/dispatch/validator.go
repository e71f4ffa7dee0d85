package dispatch

import (
	"github.com/flashflow/flashflow/pkg/model"
)

// ValidateTransition checks whether a work item may legally enter target,
// evaluated against the prospective merged state (current record overlaid
// with the incoming update). force bypasses every completeness rule but not
// the status-validity check; who may set force is the lease manager's
// concern, not the validator's.
func ValidateTransition(target model.VideoStatus, merged *model.Video, force bool) error {
	if !target.Valid() {
		return newError(KindValidation, CodeInvalidStatus, "unsupported status %q", target)
	}
	if force {
		return nil
	}

	switch target {
	case model.StatusNotRecorded, model.StatusRecorded, model.StatusRejected:
		return nil
	case model.StatusEdited:
		if merged.FinalMediaURL == "" && merged.AltMediaURL == "" && !merged.ScriptNotRequired {
			return newError(KindState, CodeMissingFinalMedia,
				"EDITED requires final_media_url or alt_media_url")
		}
		return nil
	case model.StatusReadyToPost:
		if !merged.ScriptLocked && !merged.ScriptNotRequired {
			return newError(KindState, CodeMissingLockedScript,
				"READY_TO_POST requires a locked script")
		}
		return nil
	case model.StatusPosted:
		if merged.PostedURL == "" || merged.PostedPlatform == "" {
			return newError(KindState, CodeMissingPostingFields,
				"POSTED requires posted_url and posted_platform")
		}
		return nil
	}
	return newError(KindValidation, CodeInvalidStatus, "unsupported status %q", target)
}

// CanActNext reports whether a role could usefully receive an item from its
// lane, based on data completeness: there is no point dispatching work the
// worker cannot advance.
func CanActNext(role model.Role, v *model.Video) bool {
	switch role {
	case model.RoleRecorder:
		return true
	case model.RoleEditor:
		// Editing follows the script; an unlocked script blocks the edit
		// unless the item is flagged as not needing one.
		return v.ScriptLocked || v.ScriptNotRequired
	case model.RoleUploader:
		return v.FinalMediaURL != "" || v.AltMediaURL != ""
	case model.RoleAdmin:
		return true
	}
	return false
}
