// Syncnow runs a single sync pass and exits. Useful for verifying a new
// installation without waiting for the scheduler. Pass -force to run even
// when a startup precondition fails.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"license-monitor/agent/internal/callin"
	"license-monitor/agent/internal/config"
	"license-monitor/agent/internal/directory/ldap"
	"license-monitor/agent/internal/portal"
	"license-monitor/agent/internal/startup"
	"license-monitor/agent/internal/sync"
	"license-monitor/agent/internal/version"
)

func main() {
	force := flag.Bool("force", false, "run the pass even if a startup precondition fails")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall pass timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("hostname: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	portalClient := portal.NewClient(cfg.PortalURL, cfg.PortalAPIKey, cfg.DeviceID, cfg.Timeout())
	dirClient := ldap.NewClient(cfg.LDAPURL, cfg.LDAPBaseDN, cfg.LDAPBindDN, cfg.LDAPBindPassword, cfg.LDAPPageSize)
	resolver := callin.NewResolver(portalClient, cfg.DeviceID, hostname, version.Version)
	orchestrator := sync.NewOrchestrator(dirClient, portalClient, portalClient, portalClient, resolver, hostname, version.Version)

	if err := startup.NewChecks(*cfg, dirClient, portalClient).ValidateSync(ctx); err != nil {
		if !*force || !errors.Is(err, startup.ErrPrecondition) {
			log.Fatalf("preconditions: %v", err)
		}
		log.Printf("preconditions failed, continuing under -force: %v", err)
	}

	start := time.Now()
	report, err := orchestrator.Run(ctx)
	if err != nil {
		log.Fatalf("sync pass: %v", err)
	}

	log.Printf("pass done in %s: users created=%d updated=%d deleted=%d, groups created=%d updated=%d deleted=%d, members added=%d removed=%d",
		time.Since(start).Round(time.Millisecond),
		report.Users.Created.Succeeded, report.Users.Updated.Succeeded, report.Users.Deleted.Succeeded,
		report.Groups.Created.Succeeded, report.Groups.Updated.Succeeded, report.Groups.Deleted.Succeeded,
		report.Members.Added.Succeeded, report.Members.Removed.Succeeded)
}
