// Package portal provides the HTTP client for the license portal API and the
// capability interfaces sync passes consume.
package portal

import (
	"context"
	"errors"

	"license-monitor/agent/internal/portal/domain"
)

// ErrNotFound distinguishes "no such record" from a failed lookup. Callers
// check with errors.Is; any other non-nil error means the lookup itself failed.
var ErrNotFound = errors.New("portal: not found")

// Reader lists the portal's current copies of directory records.
type Reader interface {
	// ListUsers returns the portal's user records. With activeOnly, records
	// already soft-deleted are excluded.
	ListUsers(ctx context.Context, activeOnly bool) ([]domain.UserRecord, error)
	// ListGroups returns the portal's group records.
	ListGroups(ctx context.Context, activeOnly bool) ([]domain.GroupRecord, error)
	// ListGroupMembers returns the user IDs the portal has recorded as
	// members of the group.
	ListGroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// Writer mutates portal records. Deletes are soft deletes.
type Writer interface {
	CreateUser(ctx context.Context, record domain.UserRecord) error
	UpdateUser(ctx context.Context, record domain.UserRecord) error
	DeleteUser(ctx context.Context, id string) error
	CreateGroup(ctx context.Context, record domain.GroupRecord) error
	UpdateGroup(ctx context.Context, record domain.GroupRecord) error
	DeleteGroup(ctx context.Context, id string) error
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
}

// Sessions manages upload sessions (call-in cycles) for this installation.
type Sessions interface {
	// GetUploadStatus returns the device's call-in status for the cycle.
	GetUploadStatus(ctx context.Context, deviceID string) (domain.CallInStatus, error)
	// GetUploadSessionID returns the existing session ID for the device.
	// Returns ErrNotFound when the portal has no session for it.
	GetUploadSessionID(ctx context.Context, deviceID string) (int, error)
	// CreateUploadSession registers a new session and returns its ID.
	CreateUploadSession(ctx context.Context, session domain.UploadSession) (int, error)
	// CheckIn stamps check-in time, hostname, and client version on the
	// session and forces its status to called-in. Idempotent.
	CheckIn(ctx context.Context, sessionID int, hostname, clientVersion string) error
}

// Accounts resolves portal account details during startup validation.
type Accounts interface {
	// AccountID returns the billing account the device belongs to.
	// Returns ErrNotFound when the portal does not know the device.
	AccountID(ctx context.Context, deviceID string) (int, error)
}

// LicenseReporter submits the licensing-check result for a cycle.
type LicenseReporter interface {
	ReportLicense(ctx context.Context, report domain.LicenseReport) error
}
