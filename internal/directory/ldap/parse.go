package ldap

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"

	"license-monitor/agent/internal/directory/domain"
)

// uacAccountDisable is the ACCOUNTDISABLE bit of userAccountControl.
const uacAccountDisable = 0x2

const (
	filetimeEpochOffset = 116444736000000000
	filetimeNever       = int64(9223372036854775807)
)

// generalizedTimeLayouts are the whenCreated formats observed in the wild;
// directories differ on whether the fractional second is present.
var generalizedTimeLayouts = []string{
	"20060102150405.0Z",
	"20060102150405Z",
}

// parseUser builds a user snapshot from an LDAP entry. Returns an error when
// the entry has no usable objectGUID or whenCreated; callers skip and log.
func parseUser(entry *ldap.Entry) (domain.User, error) {
	id, err := guidFromBytes(entry.GetRawAttributeValue("objectGUID"))
	if err != nil {
		return domain.User{}, err
	}

	whenCreated, err := parseGeneralizedTime(entry.GetAttributeValue("whenCreated"))
	if err != nil {
		return domain.User{}, fmt.Errorf("whenCreated: %w", err)
	}

	enabled := true
	if uac, err := strconv.ParseInt(entry.GetAttributeValue("userAccountControl"), 10, 64); err == nil {
		enabled = uac&uacAccountDisable == 0
	}

	return domain.User{
		ID:          id,
		AccountName: entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
		Email:       entry.GetAttributeValue("mail"),
		FirstName:   entry.GetAttributeValue("givenName"),
		Surname:     entry.GetAttributeValue("sn"),
		Enabled:     enabled,
		WhenCreated: whenCreated,
		LastLogon:   parseFiletime(entry.GetAttributeValue("lastLogonTimestamp")),
	}, nil
}

// parseGroup builds a group snapshot from an LDAP entry. Member IDs are
// resolved separately because the member attribute carries DNs, not GUIDs.
func parseGroup(entry *ldap.Entry) (domain.Group, error) {
	id, err := guidFromBytes(entry.GetRawAttributeValue("objectGUID"))
	if err != nil {
		return domain.Group{}, err
	}

	whenCreated, err := parseGeneralizedTime(entry.GetAttributeValue("whenCreated"))
	if err != nil {
		return domain.Group{}, fmt.Errorf("whenCreated: %w", err)
	}

	return domain.Group{
		ID:          id,
		Name:        entry.GetAttributeValue("cn"),
		WhenCreated: whenCreated,
	}, nil
}

// parseGeneralizedTime parses an LDAP Generalized-Time value.
func parseGeneralizedTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty generalized time")
	}
	var lastErr error
	for _, layout := range generalizedTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseFiletime parses a Windows FILETIME integer attribute. Absent, zero, or
// sentinel values mean the account has never logged on and yield nil.
func parseFiletime(s string) *time.Time {
	if s == "" || s == "0" {
		return nil
	}
	ft, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ft == 0 || ft == filetimeNever {
		return nil
	}
	t := time.Unix(0, (ft-filetimeEpochOffset)*100).UTC()
	return &t
}
