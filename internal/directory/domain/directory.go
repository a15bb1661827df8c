package domain

import "time"

// User is a point-in-time snapshot of a directory user account.
// Snapshots are built fresh on every enumeration and never mutated.
type User struct {
	ID          string // objectGUID, stable and immutable
	AccountName string // sAMAccountName
	DisplayName string
	Email       string
	FirstName   string
	Surname     string
	Enabled     bool
	WhenCreated time.Time
	LastLogon   *time.Time // nil when the account has never logged on
	GroupIDs    []string   // groups the user is a member of
}

// Group is a point-in-time snapshot of a directory security group.
type Group struct {
	ID          string // objectGUID
	Name        string
	WhenCreated time.Time
	MemberIDs   []string // user objectGUIDs
}
