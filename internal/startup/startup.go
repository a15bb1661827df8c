// Package startup validates the preconditions the agent's jobs depend on.
// The directory-sync job is gated on directory reachability, the domain
// controller role, and portal account registration; the licensing job is
// gated on license file presence. A failed precondition is not fatal to the
// agent; callers skip that job's pass with a warning and try again next
// cycle.
package startup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"license-monitor/agent/internal/config"
	"license-monitor/agent/internal/directory"
	"license-monitor/agent/internal/portal"
)

// ErrPrecondition marks a failed startup check. Callers test with errors.Is
// and treat it as skip-and-retry rather than abort.
var ErrPrecondition = errors.New("startup precondition not met")

// Checks runs the agent's startup validation.
type Checks struct {
	cfg      config.Config
	dir      directory.Reader
	accounts portal.Accounts
}

// NewChecks wires the startup validation against the directory and portal.
func NewChecks(cfg config.Config, dir directory.Reader, accounts portal.Accounts) *Checks {
	return &Checks{cfg: cfg, dir: dir, accounts: accounts}
}

// ValidateSync runs the directory-sync preconditions and returns the joined
// failures, all wrapping ErrPrecondition. The license file is deliberately
// not checked here; a missing license must never stall directory sync.
// Overrides in configuration relax individual checks and log that they did so.
func (c *Checks) ValidateSync(ctx context.Context) error {
	var failures []error

	if err := c.checkDomainController(ctx); err != nil {
		failures = append(failures, err)
	}
	if err := c.checkAccount(ctx); err != nil {
		failures = append(failures, err)
	}

	return errors.Join(failures...)
}

// ValidateLicensing runs the licensing-job precondition: the license file
// must be configured and present. Failures wrap ErrPrecondition so the job
// skips the cycle with a warning instead of failing.
func (c *Checks) ValidateLicensing() error {
	if c.cfg.LicensingDisabled {
		return nil
	}
	if c.cfg.LicenseFile == "" {
		return fmt.Errorf("%w: LICENSE_FILE is not configured", ErrPrecondition)
	}
	if _, err := os.Stat(c.cfg.LicenseFile); err != nil {
		return fmt.Errorf("%w: license file %s: %v", ErrPrecondition, c.cfg.LicenseFile, err)
	}
	return nil
}

// checkDomainController verifies the directory answers and that this server
// holds the PDC emulator role. Only one agent per domain should push state;
// the role check keeps replicas quiet. PDC_OVERRIDE relaxes the role
// requirement but not reachability.
func (c *Checks) checkDomainController(ctx context.Context) error {
	isPDC, err := c.dir.IsPrimaryDomainController(ctx)
	if err != nil {
		return fmt.Errorf("%w: directory unreachable: %v", ErrPrecondition, err)
	}
	if isPDC {
		return nil
	}
	if c.cfg.PDCOverride {
		log.Printf("startup: not the PDC emulator, continuing under PDC_OVERRIDE")
		return nil
	}
	return fmt.Errorf("%w: this server does not hold the PDC emulator role", ErrPrecondition)
}

// checkAccount verifies the portal recognizes this installation's device ID.
func (c *Checks) checkAccount(ctx context.Context) error {
	if c.cfg.DeviceID == "" {
		return fmt.Errorf("%w: DEVICE_ID is not configured", ErrPrecondition)
	}
	accountID, err := c.accounts.AccountID(ctx, c.cfg.DeviceID)
	if err != nil {
		if errors.Is(err, portal.ErrNotFound) {
			return fmt.Errorf("%w: portal does not recognize device %s", ErrPrecondition, c.cfg.DeviceID)
		}
		return fmt.Errorf("%w: account lookup: %v", ErrPrecondition, err)
	}
	log.Printf("startup: device %s registered to account %d", c.cfg.DeviceID, accountID)
	return nil
}
