package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/service"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/validator"
)

// UsageHandler handles HTTP requests for usage metering endpoints. The check
// and record endpoints exist for the domain services that own contacts,
// territories, and schedules; they call in before and after tenant-owned
// writes.
type UsageHandler struct {
	usage *service.UsageService
}

// NewUsageHandler creates a new usage HTTP handler.
func NewUsageHandler(usage *service.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// --- Request DTOs ---

// UsageCheckRequest is the JSON request body for a pre-flight limit check.
type UsageCheckRequest struct {
	Action          string `json:"action" validate:"required"`
	ResourceOwnerID string `json:"resource_owner_id" validate:"omitempty,uuid4"`
}

// UsageRecordRequest is the JSON request body for recording usage. Delta
// defaults to one unit when omitted; bulk writers pass their batch size.
type UsageRecordRequest struct {
	Action string `json:"action" validate:"required"`
	Delta  int64  `json:"delta" validate:"omitempty,gt=0"`
}

// --- Handlers ---

// GetUsage handles GET /api/v1/usage
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	snapshot, err := h.usage.Snapshot(r.Context(), tc.IdentityID, tc.Role)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: snapshot})
}

// CheckUsage handles POST /api/v1/usage/check
func (h *UsageHandler) CheckUsage(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req UsageCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	metric, ok := domain.MetricForAction(req.Action)
	if !ok {
		writeAppError(w, r, apperrors.InvalidInput(fmt.Sprintf("unknown action %q", req.Action)))
		return
	}

	// The write the caller is about to perform must target the caller's own
	// tenant unless its role crosses tenants.
	if req.ResourceOwnerID != "" {
		if err := ValidateAccess(tc, req.ResourceOwnerID); err != nil {
			writeAppError(w, r, err)
			return
		}
	}

	check, err := h.usage.CheckLimit(r.Context(), tc.IdentityID, tc.Role, metric)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: check})
}

// RecordUsage handles POST /api/v1/usage/record
func (h *UsageHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req UsageRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	metric, ok := domain.MetricForAction(req.Action)
	if !ok {
		writeAppError(w, r, apperrors.InvalidInput(fmt.Sprintf("unknown action %q", req.Action)))
		return
	}

	delta := req.Delta
	if delta == 0 {
		delta = 1
	}

	if err := h.usage.RecordUsage(r.Context(), tc.IdentityID, metric, delta); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"status": "recorded"}})
}
