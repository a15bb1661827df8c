package ldap

import (
	"strconv"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// adGUIDBytes renders a uuid in Active Directory (little-endian) byte order,
// the inverse of guidFromBytes.
func adGUIDBytes(t *testing.T, id string) []byte {
	t.Helper()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	b := make([]byte, 16)
	copy(b, u[:])
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
	return b
}

func TestGuidFromBytes_RoundTrip(t *testing.T) {
	const id = "5f0a3a8d-9c4b-4f21-8a36-5a6d9f2c1e07"

	got, err := guidFromBytes(adGUIDBytes(t, id))
	if err != nil {
		t.Fatalf("guidFromBytes: %v", err)
	}
	if got != id {
		t.Errorf("guidFromBytes = %q, want %q", got, id)
	}
}

func TestGuidFromBytes_WrongLength(t *testing.T) {
	if _, err := guidFromBytes([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for short GUID")
	}
	if _, err := guidFromBytes(nil); err == nil {
		t.Error("expected error for absent GUID")
	}
}

func TestGuidFilterValue(t *testing.T) {
	const id = "5f0a3a8d-9c4b-4f21-8a36-5a6d9f2c1e07"

	got, err := guidFilterValue(id)
	if err != nil {
		t.Fatalf("guidFilterValue: %v", err)
	}
	// 16 bytes, each escaped as \xx.
	if len(got) != 48 {
		t.Errorf("filter value length = %d, want 48 (%q)", len(got), got)
	}
	want := ""
	for _, b := range adGUIDBytes(t, id) {
		want += "\\" + hexByte(b)
	}
	if got != want {
		t.Errorf("guidFilterValue = %q, want %q", got, want)
	}

	if _, err := guidFilterValue("not-a-uuid"); err == nil {
		t.Error("expected error for invalid uuid")
	}
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

func TestParseGeneralizedTime(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{"with fraction", "20230115093045.0Z", time.Date(2023, 1, 15, 9, 30, 45, 0, time.UTC), false},
		{"without fraction", "20230115093045Z", time.Date(2023, 1, 15, 9, 30, 45, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseGeneralizedTime(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGeneralizedTime: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("parseGeneralizedTime = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseFiletime(t *testing.T) {
	// 2023-01-15T09:30:45Z as FILETIME (100ns intervals since 1601-01-01).
	want := time.Date(2023, 1, 15, 9, 30, 45, 0, time.UTC)
	ft := want.UnixNano()/100 + filetimeEpochOffset

	got := parseFiletime(strconv.FormatInt(ft, 10))
	if got == nil {
		t.Fatal("parseFiletime returned nil for valid value")
	}
	if !got.Equal(want) {
		t.Errorf("parseFiletime = %v, want %v", got, want)
	}

	for _, v := range []string{"", "0", "9223372036854775807", "not-a-number"} {
		if got := parseFiletime(v); got != nil {
			t.Errorf("parseFiletime(%q) = %v, want nil", v, got)
		}
	}
}

func TestParseUser(t *testing.T) {
	entry := ldap.NewEntry("CN=Jane Doe,OU=Staff,DC=corp,DC=local", map[string][]string{
		"objectGUID":         {string(adGUIDBytes(t, "5f0a3a8d-9c4b-4f21-8a36-5a6d9f2c1e07"))},
		"sAMAccountName":     {"jdoe"},
		"displayName":        {"Jane Doe"},
		"mail":               {"jane.doe@corp.local"},
		"givenName":          {"Jane"},
		"sn":                 {"Doe"},
		"userAccountControl": {"512"},
		"whenCreated":        {"20230115093045.0Z"},
	})

	user, err := parseUser(entry)
	if err != nil {
		t.Fatalf("parseUser: %v", err)
	}
	if user.ID != "5f0a3a8d-9c4b-4f21-8a36-5a6d9f2c1e07" {
		t.Errorf("ID = %q", user.ID)
	}
	if user.AccountName != "jdoe" {
		t.Errorf("AccountName = %q, want jdoe", user.AccountName)
	}
	if !user.Enabled {
		t.Error("Enabled = false for UAC 512")
	}
	if user.LastLogon != nil {
		t.Errorf("LastLogon = %v, want nil for absent attribute", user.LastLogon)
	}
	if user.WhenCreated.IsZero() {
		t.Error("WhenCreated is zero")
	}
}

func TestParseUser_DisabledAccount(t *testing.T) {
	entry := ldap.NewEntry("CN=Old Account,DC=corp,DC=local", map[string][]string{
		"objectGUID":         {string(adGUIDBytes(t, "0d4f3a8d-9c4b-4f21-8a36-5a6d9f2c1e07"))},
		"userAccountControl": {"514"}, // NORMAL_ACCOUNT | ACCOUNTDISABLE
		"whenCreated":        {"20230115093045.0Z"},
	})

	user, err := parseUser(entry)
	if err != nil {
		t.Fatalf("parseUser: %v", err)
	}
	if user.Enabled {
		t.Error("Enabled = true for UAC 514")
	}
}

func TestParseUser_MissingGUID(t *testing.T) {
	entry := ldap.NewEntry("CN=Broken,DC=corp,DC=local", map[string][]string{
		"whenCreated": {"20230115093045.0Z"},
	})

	if _, err := parseUser(entry); err == nil {
		t.Fatal("expected error for missing objectGUID")
	}
}

func TestParseGroup(t *testing.T) {
	entry := ldap.NewEntry("CN=Licensed Users,DC=corp,DC=local", map[string][]string{
		"objectGUID":  {string(adGUIDBytes(t, "7e2b3a8d-9c4b-4f21-8a36-5a6d9f2c1e07"))},
		"cn":          {"Licensed Users"},
		"whenCreated": {"20220301120000.0Z"},
	})

	group, err := parseGroup(entry)
	if err != nil {
		t.Fatalf("parseGroup: %v", err)
	}
	if group.Name != "Licensed Users" {
		t.Errorf("Name = %q", group.Name)
	}
	if group.ID != "7e2b3a8d-9c4b-4f21-8a36-5a6d9f2c1e07" {
		t.Errorf("ID = %q", group.ID)
	}
}

func TestResolveMembers_SkipsUnresolvable(t *testing.T) {
	entry := ldap.NewEntry("CN=Licensed Users,DC=corp,DC=local", map[string][]string{
		"member": {
			"CN=Jane Doe,DC=corp,DC=local",
			"CN=Nested Group,DC=corp,DC=local",
			"CN=John Roe,DC=corp,DC=local",
		},
	})
	userIDByDN := map[string]string{
		"CN=Jane Doe,DC=corp,DC=local": "id-jane",
		"CN=John Roe,DC=corp,DC=local": "id-john",
	}

	got := resolveMembers(entry, userIDByDN)
	if len(got) != 2 {
		t.Fatalf("resolved %d members, want 2: %v", len(got), got)
	}
	if got[0] != "id-jane" || got[1] != "id-john" {
		t.Errorf("members = %v, want sorted [id-jane id-john]", got)
	}
}
