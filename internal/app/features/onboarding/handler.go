// internal/app/features/onboarding/handler.go
package onboarding

import (
	"context"
	"net/http"

	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/clerkapi"
	"github.com/dalemusser/airodental/internal/app/system/respond"
	"github.com/dalemusser/airodental/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler completes onboarding in the identity provider. The next session
// token carries the flag; the gate reads it from there.
type Handler struct {
	Meta clerkapi.MetadataWriter
	Log  *zap.Logger
}

// NewHandler constructs an onboarding handler.
func NewHandler(meta clerkapi.MetadataWriter, logger *zap.Logger) *Handler {
	return &Handler{Meta: meta, Log: logger}
}

// HandleComplete handles POST /onboarding/complete.
//
//	200 {"success":true,"message":"Onboarding completed successfully."}
//	401 {"error":"User not authenticated."}
//	500 {"error":"…"}
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)
	if !s.SignedIn() {
		respond.Error(w, http.StatusUnauthorized, "User not authenticated.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Meta.CompleteOnboarding(ctx, s.UserID); err != nil {
		h.Log.Error("error completing onboarding", zap.String("user_id", s.UserID), zap.Error(err))
		msg := err.Error()
		if msg == "" {
			msg = "There was an error updating user metadata."
		}
		respond.Error(w, http.StatusInternalServerError, msg)
		return
	}

	h.Log.Info("onboarding completed", zap.String("user_id", s.UserID))
	respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Onboarding completed successfully.",
	})
}
