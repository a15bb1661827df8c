// Package callin resolves the upload session a sync pass reports under,
// driving the portal's call-in state machine.
package callin

import (
	"context"
	"fmt"
	"log"
	"time"

	"license-monitor/agent/internal/portal"
	"license-monitor/agent/internal/portal/domain"
)

// Resolver turns the portal's call-in status into a usable session ID.
// Only a device the portal has never seen gets a new session; in every other
// state the existing session is reused for the pass.
type Resolver struct {
	sessions      portal.Sessions
	deviceID      string
	hostname      string
	clientVersion string
}

// NewResolver returns a Resolver for the given device.
func NewResolver(sessions portal.Sessions, deviceID, hostname, clientVersion string) *Resolver {
	return &Resolver{
		sessions:      sessions,
		deviceID:      deviceID,
		hostname:      hostname,
		clientVersion: clientVersion,
	}
}

// Resolve returns the session ID for the current pass. Any failure here is
// fatal to the pass: without a session there is nothing to stamp records with.
func (r *Resolver) Resolve(ctx context.Context) (int, error) {
	status, err := r.sessions.GetUploadStatus(ctx, r.deviceID)
	if err != nil {
		return 0, fmt.Errorf("upload status for device %s: %w", r.deviceID, err)
	}

	switch status {
	case domain.StatusNeverCalledIn:
		id, err := r.sessions.CreateUploadSession(ctx, domain.UploadSession{
			DeviceID:      r.deviceID,
			Hostname:      r.hostname,
			ClientVersion: r.clientVersion,
			Status:        domain.StatusCalledIn,
			CheckInTime:   time.Now().UTC(),
			IsActive:      true,
		})
		if err != nil {
			return 0, fmt.Errorf("create upload session: %w", err)
		}
		log.Printf("callin: first contact, created session %d", id)
		return id, nil

	case domain.StatusNotCalledIn, domain.StatusCalledIn:
		id, err := r.sessions.GetUploadSessionID(ctx, r.deviceID)
		if err != nil {
			return 0, fmt.Errorf("session lookup for device %s (status %s): %w", r.deviceID, status, err)
		}
		return id, nil

	default:
		return 0, fmt.Errorf("unrecognized call-in status %q for device %s", status, r.deviceID)
	}
}
