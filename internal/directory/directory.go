// Package directory defines the read-only view of the source-of-truth
// directory that sync passes consume.
package directory

import (
	"context"
	"errors"

	"license-monitor/agent/internal/directory/domain"
)

// ErrUnavailable wraps failures to reach the directory at all (connection,
// bind, or search errors). A listing call failing with this aborts the
// current domain's stage; it never fails a single item.
var ErrUnavailable = errors.New("directory unavailable")

// Reader enumerates users and groups from the directory. Every call performs
// a fresh enumeration; no cursor or cache carries over between passes.
type Reader interface {
	// ListUsers returns a snapshot of every user account.
	ListUsers(ctx context.Context) ([]domain.User, error)
	// ListGroups returns a snapshot of every security group.
	ListGroups(ctx context.Context) ([]domain.Group, error)
	// ListGroupMembers returns the user IDs that are members of the group.
	// Principals with missing or invalid identifiers are skipped, not errors.
	ListGroupMembers(ctx context.Context, groupID string) ([]string, error)
	// IsPrimaryDomainController reports whether this host owns the PDC role.
	IsPrimaryDomainController(ctx context.Context) (bool, error)
}
