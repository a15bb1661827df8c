// Package licensing parses the installed product license file and reports
// its state to the portal once per cycle.
package licensing

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
)

// Property keys as they appear in the license file.
const (
	keyEdition    = "EDITION"
	keySupportID  = "SUPPORT ID"
	keyExpiryDate = "EXPIRATION DATE"
	keyCompany    = "COMPANY"
	keyLicensedTo = "LICENSED TO"
)

var expiryLayouts = []string{"02/01/2006", "2006-01-02"}

// License is the parsed key=value content of a license file. Keys are
// case-insensitive; lookups normalize to upper case.
type License struct {
	props map[string]string
}

// ParseFile reads and parses the license file at path.
func ParseFile(path string) (*License, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read license file: %w", err)
	}
	return Parse(data)
}

// Parse parses license data: one KEY=value pair per line. CRLF line endings
// are tolerated, blank lines and lines without a separator (the trailing
// signature block) are skipped. Later duplicates win.
func Parse(data []byte) (*License, error) {
	props := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		props[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan license data: %w", err)
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("license data contains no properties")
	}

	return &License{props: props}, nil
}

// Property returns the raw value for key, or "" when absent.
func (l *License) Property(key string) string {
	return l.props[strings.ToUpper(key)]
}

// Edition returns the licensed product edition.
func (l *License) Edition() string { return l.Property(keyEdition) }

// SupportID returns the support contract identifier.
func (l *License) SupportID() string { return l.Property(keySupportID) }

// Company returns the licensee's company name.
func (l *License) Company() string {
	if v := l.Property(keyCompany); v != "" {
		return v
	}
	return l.Property(keyLicensedTo)
}

// ExpiryDate returns the license expiration date. The file writes it either
// day-first slash-separated or ISO.
func (l *License) ExpiryDate() (time.Time, error) {
	raw := l.Property(keyExpiryDate)
	if raw == "" {
		return time.Time{}, fmt.Errorf("license has no %s property", keyExpiryDate)
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable %s value %q", keyExpiryDate, raw)
}

// Expired reports whether the license has lapsed as of now.
func (l *License) Expired(now time.Time) bool {
	expiry, err := l.ExpiryDate()
	if err != nil {
		return false
	}
	return now.After(expiry.AddDate(0, 0, 1))
}
