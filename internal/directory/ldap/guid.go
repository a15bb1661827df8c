package ldap

import (
	"fmt"

	"github.com/google/uuid"
)

// guidFromBytes converts an objectGUID value (Active Directory little-endian
// layout) into an RFC 4122 uuid string.
func guidFromBytes(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("objectGUID: expected 16 bytes, got %d", len(raw))
	}

	b := make([]byte, 16)
	copy(b, raw)

	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]

	u, err := uuid.FromBytes(b)
	if err != nil {
		return "", fmt.Errorf("objectGUID: %w", err)
	}
	return u.String(), nil
}

// guidFilterValue renders a uuid string as an escaped objectGUID filter value
// (\xx per byte, AD byte order) for use inside an LDAP search filter.
func guidFilterValue(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("objectGUID filter: %w", err)
	}

	b := make([]byte, 16)
	copy(b, u[:])

	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]

	out := make([]byte, 0, 48)
	for _, c := range b {
		out = append(out, fmt.Sprintf("\\%02x", c)...)
	}
	return string(out), nil
}
