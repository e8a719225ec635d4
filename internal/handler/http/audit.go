package http

import (
	"net/http"
	"strconv"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/service"
)

// maxAuditPageSize caps how many entries one listing may return.
const maxAuditPageSize = 500

// AuditHandler handles HTTP requests for reading the audit log. The route is
// guarded by the audit_read capability; there is deliberately no write
// surface here.
type AuditHandler struct {
	audit *service.AuditRecorder
}

// NewAuditHandler creates a new audit HTTP handler.
func NewAuditHandler(audit *service.AuditRecorder) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /api/v1/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.AuditFilter{
		IdentityID: r.URL.Query().Get("identity_id"),
		Resource:   r.URL.Query().Get("resource"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{Code: "INVALID_INPUT", Message: "limit must be a positive integer"},
			})
			return
		}
		if limit > maxAuditPageSize {
			limit = maxAuditPageSize
		}
		filter.Limit = limit
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: entries})
}
