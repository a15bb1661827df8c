package licensing

import (
	"context"
	"fmt"
	"log"
	"time"

	"license-monitor/agent/internal/portal"
	"license-monitor/agent/internal/portal/domain"
)

// sessionResolver matches the sync package's resolver so the licensing job
// reports under the same upload session as the directory pass.
type sessionResolver interface {
	Resolve(ctx context.Context) (int, error)
}

// Checker reads the license file each cycle and reports its state.
type Checker struct {
	path     string
	reporter portal.LicenseReporter
	resolver sessionResolver
	hostname string
}

// NewChecker returns a Checker reporting the license file at path.
func NewChecker(path string, reporter portal.LicenseReporter, resolver sessionResolver, hostname string) *Checker {
	return &Checker{path: path, reporter: reporter, resolver: resolver, hostname: hostname}
}

// Run performs one licensing check: parse the file, resolve the session, and
// submit the report. An unreadable or unparseable license file fails the run.
func (c *Checker) Run(ctx context.Context) error {
	lic, err := ParseFile(c.path)
	if err != nil {
		return err
	}

	expiry, err := lic.ExpiryDate()
	if err != nil {
		return err
	}
	if lic.Expired(time.Now()) {
		log.Printf("licensing: license expired %s", expiry.Format("2006-01-02"))
	}

	sessionID, err := c.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve upload session: %w", err)
	}

	report := domain.LicenseReport{
		UploadID:   sessionID,
		Edition:    lic.Edition(),
		SupportID:  lic.SupportID(),
		ExpiryDate: expiry,
		Hostname:   c.hostname,
		ReportedAt: time.Now().UTC(),
	}
	if err := c.reporter.ReportLicense(ctx, report); err != nil {
		return fmt.Errorf("report license: %w", err)
	}

	log.Printf("licensing: reported edition=%s expiry=%s session=%d",
		report.Edition, expiry.Format("2006-01-02"), sessionID)
	return nil
}
