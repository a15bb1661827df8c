// Agent syncs the local directory (users, groups, membership) to the license
// portal on a fixed interval and reports the installed product license.
// Configure via env or .env; PORTAL_URL is required.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-monitor/agent/internal/callin"
	"license-monitor/agent/internal/config"
	"license-monitor/agent/internal/directory/ldap"
	"license-monitor/agent/internal/licensing"
	"license-monitor/agent/internal/portal"
	"license-monitor/agent/internal/scheduler"
	"license-monitor/agent/internal/startup"
	"license-monitor/agent/internal/sync"
	"license-monitor/agent/internal/telemetry"
	"license-monitor/agent/internal/telemetry/otel"
	"license-monitor/agent/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("hostname: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "license-agent", cfg.Env, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	metrics, err := telemetry.NewPassMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	portalClient := portal.NewClient(cfg.PortalURL, cfg.PortalAPIKey, cfg.DeviceID, cfg.Timeout())
	dirClient := ldap.NewClient(cfg.LDAPURL, cfg.LDAPBaseDN, cfg.LDAPBindDN, cfg.LDAPBindPassword, cfg.LDAPPageSize)
	resolver := callin.NewResolver(portalClient, cfg.DeviceID, hostname, version.Version)
	orchestrator := sync.NewOrchestrator(dirClient, portalClient, portalClient, portalClient, resolver, hostname, version.Version)
	checks := startup.NewChecks(*cfg, dirClient, portalClient)
	checker := licensing.NewChecker(cfg.LicenseFile, portalClient, resolver, hostname)

	var sched scheduler.Scheduler
	sched.OnDrop = func(name string) { metrics.RecordDroppedTrigger(ctx, name) }
	if cfg.UsersDisabled {
		log.Println("agent: directory sync disabled by USERS_DISABLED")
	} else {
		sched.Add("directory-sync", cfg.Interval(), func(ctx context.Context) error {
			if err := checks.ValidateSync(ctx); err != nil {
				if errors.Is(err, startup.ErrPrecondition) {
					log.Printf("agent: skipping sync pass: %v", err)
					return nil
				}
				return err
			}
			start := time.Now()
			report, err := orchestrator.Run(ctx)
			metrics.RecordPass(ctx, report, time.Since(start), err)
			return err
		})
	}
	if cfg.LicensingDisabled {
		log.Println("agent: licensing check disabled by LICENSING_DISABLED")
	} else {
		sched.Add("licensing-check", cfg.Interval(), func(ctx context.Context) error {
			if err := checks.ValidateLicensing(); err != nil {
				if errors.Is(err, startup.ErrPrecondition) {
					log.Printf("agent: skipping licensing check: %v", err)
					return nil
				}
				return err
			}
			return checker.Run(ctx)
		})
	}

	log.Printf("agent %s starting: portal=%s interval=%s", version.Version, cfg.PortalURL, cfg.Interval())
	sched.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("agent: shutting down...")
	cancel()
	sched.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry: %v", err)
	}
	log.Println("agent: stopped")
}
