package domain

import "time"

// CallInStatus is the portal's view of whether this installation has
// registered for the current reporting cycle.
type CallInStatus string

const (
	// StatusNeverCalledIn means the portal has no upload session for this
	// device at all; the agent must create one.
	StatusNeverCalledIn CallInStatus = "never_called_in"
	// StatusNotCalledIn means a session exists for the cycle but the device
	// has not checked in yet.
	StatusNotCalledIn CallInStatus = "not_called_in"
	// StatusCalledIn means the device has already checked in this cycle.
	StatusCalledIn CallInStatus = "called_in"
)

// UserRecord is the portal's last-known copy of a directory user.
// Owned by the portal; the agent only reads it and proposes mutations.
type UserRecord struct {
	ID          string     `json:"id"`
	AccountName string     `json:"accountName"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	Surname     string     `json:"surname"`
	Enabled     bool       `json:"enabled"`
	WhenCreated time.Time  `json:"whenCreated"`
	LastLogon   *time.Time `json:"lastLogon,omitempty"`
	IsDeleted   bool       `json:"isDeleted"`
	UploadID    int        `json:"uploadId"`
}

// GroupRecord is the portal's last-known copy of a directory group.
type GroupRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	WhenCreated time.Time `json:"whenCreated"`
	IsDeleted   bool      `json:"isDeleted"`
	UploadID    int       `json:"uploadId"`
}

// UploadSession represents one call-in cycle for an installation.
// Created by the portal on first contact; the agent holds only the ID
// for the duration of a pass.
type UploadSession struct {
	ID            int          `json:"id"`
	DeviceID      string       `json:"deviceId"`
	Hostname      string       `json:"hostname"`
	ClientVersion string       `json:"clientVersion"`
	Status        CallInStatus `json:"status"`
	CheckInTime   time.Time    `json:"checkInTime"`
	IsActive      bool         `json:"isActive"`
}

// LicenseReport is the licensing-check payload sent once per cycle.
type LicenseReport struct {
	UploadID   int       `json:"uploadId"`
	Edition    string    `json:"edition"`
	SupportID  string    `json:"supportId"`
	ExpiryDate time.Time `json:"expiryDate"`
	Hostname   string    `json:"hostname"`
	ReportedAt time.Time `json:"reportedAt"`
}
