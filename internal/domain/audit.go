package domain

import (
	"net/http"
	"time"
)

// AuditAction is the verb recorded for a sensitive operation.
type AuditAction string

const (
	AuditActionCreate      AuditAction = "CREATE"
	AuditActionRead        AuditAction = "READ"
	AuditActionUpdate      AuditAction = "UPDATE"
	AuditActionDelete      AuditAction = "DELETE"
	AuditActionLogin       AuditAction = "LOGIN"
	AuditActionLogout      AuditAction = "LOGOUT"
	AuditActionFailedLogin AuditAction = "FAILED_LOGIN"
)

// ActionForMethod maps an HTTP method to the audit action recorded by the
// gate's response hook.
func ActionForMethod(method string) AuditAction {
	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionRead
	}
}

// AuditEntry is an append-only record of who did what, when, and from where.
// IdentityID is empty for events with no resolved identity (failed logins).
// Entries are never updated or deleted by this service.
type AuditEntry struct {
	ID         string      `json:"id"`
	IdentityID string      `json:"identity_id,omitempty"`
	Action     AuditAction `json:"action"`
	Resource   string      `json:"resource"`
	ResourceID string      `json:"resource_id,omitempty"`
	Details    string      `json:"details,omitempty"`
	IPAddress  string      `json:"ip_address,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	IdentityID string
	Resource   string
	Limit      int
}
