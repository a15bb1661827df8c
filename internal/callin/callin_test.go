package callin

import (
	"context"
	"errors"
	"testing"

	"license-monitor/agent/internal/portal"
	"license-monitor/agent/internal/portal/domain"
)

type fakeSessions struct {
	status    domain.CallInStatus
	statusErr error

	existingID int
	lookupErr  error

	created   []domain.UploadSession
	createdID int
	createErr error

	checkIns int
}

func (f *fakeSessions) GetUploadStatus(ctx context.Context, deviceID string) (domain.CallInStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeSessions) GetUploadSessionID(ctx context.Context, deviceID string) (int, error) {
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	return f.existingID, nil
}

func (f *fakeSessions) CreateUploadSession(ctx context.Context, s domain.UploadSession) (int, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, s)
	return f.createdID, nil
}

func (f *fakeSessions) CheckIn(ctx context.Context, sessionID int, hostname, clientVersion string) error {
	f.checkIns++
	return nil
}

func TestResolve_NeverCalledInCreatesExactlyOneSession(t *testing.T) {
	sessions := &fakeSessions{status: domain.StatusNeverCalledIn, createdID: 11}
	resolver := NewResolver(sessions, "device-1", "dc01", "1.2.3")

	id, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != 11 {
		t.Errorf("session id = %d, want 11", id)
	}
	if len(sessions.created) != 1 {
		t.Fatalf("sessions created = %d, want exactly 1", len(sessions.created))
	}

	created := sessions.created[0]
	if created.DeviceID != "device-1" || created.Hostname != "dc01" || created.ClientVersion != "1.2.3" {
		t.Errorf("created session = %+v", created)
	}
	if created.Status != domain.StatusCalledIn {
		t.Errorf("new session status = %q, want %q", created.Status, domain.StatusCalledIn)
	}
	if !created.IsActive {
		t.Error("new session not active")
	}
	if created.CheckInTime.IsZero() {
		t.Error("new session check-in time not stamped")
	}
}

func TestResolve_NotCalledInReusesSession(t *testing.T) {
	sessions := &fakeSessions{status: domain.StatusNotCalledIn, existingID: 22}

	id, err := NewResolver(sessions, "device-1", "dc01", "1.2.3").Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != 22 {
		t.Errorf("session id = %d, want existing 22", id)
	}
	if len(sessions.created) != 0 {
		t.Errorf("created %d sessions, want none", len(sessions.created))
	}
}

func TestResolve_CalledInCreatesNothing(t *testing.T) {
	sessions := &fakeSessions{status: domain.StatusCalledIn, existingID: 33}

	id, err := NewResolver(sessions, "device-1", "dc01", "1.2.3").Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != 33 {
		t.Errorf("session id = %d, want existing 33", id)
	}
	if len(sessions.created) != 0 {
		t.Errorf("created %d sessions, want none", len(sessions.created))
	}
}

func TestResolve_StatusFailure(t *testing.T) {
	sessions := &fakeSessions{statusErr: errors.New("portal 500")}

	if _, err := NewResolver(sessions, "device-1", "dc01", "1.2.3").Resolve(context.Background()); err == nil {
		t.Fatal("expected error when status lookup fails")
	}
	if len(sessions.created) != 0 {
		t.Error("created a session despite status failure")
	}
}

func TestResolve_SessionLookupNotFound(t *testing.T) {
	// Portal claims a session exists but cannot produce it: fail the pass
	// rather than silently creating a duplicate session.
	sessions := &fakeSessions{status: domain.StatusNotCalledIn, lookupErr: portal.ErrNotFound}

	_, err := NewResolver(sessions, "device-1", "dc01", "1.2.3").Resolve(context.Background())
	if !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(sessions.created) != 0 {
		t.Error("created a session, want none")
	}
}

func TestResolve_UnknownStatus(t *testing.T) {
	sessions := &fakeSessions{status: "weird"}

	if _, err := NewResolver(sessions, "device-1", "dc01", "1.2.3").Resolve(context.Background()); err == nil {
		t.Fatal("expected error for unrecognized status")
	}
}
