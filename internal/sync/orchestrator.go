package sync

import (
	"context"
	"fmt"
	"log"
	"sort"

	"license-monitor/agent/internal/directory"
	dirdomain "license-monitor/agent/internal/directory/domain"
	"license-monitor/agent/internal/portal"
	portaldomain "license-monitor/agent/internal/portal/domain"
)

// SessionResolver yields the upload session ID a pass stamps on every record
// it pushes. A resolution failure aborts the pass before any mutation.
type SessionResolver interface {
	Resolve(ctx context.Context) (int, error)
}

// EntityReport tallies the three mutation batches of one entity stage.
type EntityReport struct {
	Created BatchReport
	Updated BatchReport
	Deleted BatchReport
}

// MemberReport tallies the membership stage. GroupsFailed counts groups whose
// remote membership could not be listed; their member diffs were skipped.
type MemberReport struct {
	Added        BatchReport
	Removed      BatchReport
	GroupsFailed int
}

// Report summarizes one full sync pass.
type Report struct {
	SessionID int
	Users     EntityReport
	Groups    EntityReport
	Members   MemberReport
}

// Orchestrator runs full sync passes: users, then groups, then membership,
// each stage applying creates, then updates, then deletes.
type Orchestrator struct {
	dir      directory.Reader
	reader   portal.Reader
	writer   portal.Writer
	sessions portal.Sessions
	resolver SessionResolver

	hostname      string
	clientVersion string
}

// NewOrchestrator wires a sync orchestrator. hostname and clientVersion are
// stamped on the session at check-in.
func NewOrchestrator(dir directory.Reader, reader portal.Reader, writer portal.Writer, sessions portal.Sessions, resolver SessionResolver, hostname, clientVersion string) *Orchestrator {
	return &Orchestrator{
		dir:           dir,
		reader:        reader,
		writer:        writer,
		sessions:      sessions,
		resolver:      resolver,
		hostname:      hostname,
		clientVersion: clientVersion,
	}
}

// Run executes one sync pass. A session-resolution failure or a failed
// listing on either side aborts the pass and the remaining stages; individual
// record failures are logged and the pass continues. On a completed pass the
// session is checked in once, stamping hostname and client version.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report

	sessionID, err := o.resolver.Resolve(ctx)
	if err != nil {
		return report, fmt.Errorf("resolve upload session: %w", err)
	}
	report.SessionID = sessionID
	log.Printf("sync: pass started, session=%d", sessionID)

	localUsers, err := o.dir.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list directory users: %w", err)
	}
	localGroups, err := o.dir.ListGroups(ctx)
	if err != nil {
		return report, fmt.Errorf("list directory groups: %w", err)
	}
	log.Printf("sync: directory snapshot: %d users, %d groups", len(localUsers), len(localGroups))

	report.Users, err = o.syncUsers(ctx, localUsers, sessionID)
	if err != nil {
		return report, err
	}

	report.Groups, err = o.syncGroups(ctx, localGroups, sessionID)
	if err != nil {
		return report, err
	}

	report.Members, err = o.syncMembers(ctx, localGroups)
	if err != nil {
		return report, err
	}

	if err := o.sessions.CheckIn(ctx, sessionID, o.hostname, o.clientVersion); err != nil {
		return report, fmt.Errorf("check in session %d: %w", sessionID, err)
	}
	log.Printf("sync: pass complete, session=%d checked in", sessionID)
	return report, nil
}

func (o *Orchestrator) syncUsers(ctx context.Context, local []dirdomain.User, sessionID int) (EntityReport, error) {
	var report EntityReport

	remote, err := o.reader.ListUsers(ctx, false)
	if err != nil {
		return report, fmt.Errorf("list portal users: %w", err)
	}

	diff := Compute(local, remote,
		func(u dirdomain.User) string { return u.ID },
		func(r portaldomain.UserRecord) string { return r.ID },
		func(r portaldomain.UserRecord) bool { return r.IsDeleted },
	)
	log.Printf("sync: users: %d to create, %d to update, %d to delete",
		len(diff.ToCreate), len(diff.ToUpdate), len(diff.ToDelete))

	describeUser := func(u dirdomain.User) string { return u.ID }
	report.Created, err = Apply(ctx, "create user", diff.ToCreate, describeUser,
		func(ctx context.Context, u dirdomain.User) error {
			return o.writer.CreateUser(ctx, userRecord(u, sessionID))
		})
	if err != nil {
		return report, err
	}
	report.Updated, err = Apply(ctx, "update user", diff.ToUpdate, describeUser,
		func(ctx context.Context, u dirdomain.User) error {
			return o.writer.UpdateUser(ctx, userRecord(u, sessionID))
		})
	if err != nil {
		return report, err
	}
	report.Deleted, err = Apply(ctx, "delete user", diff.ToDelete,
		func(id string) string { return id },
		o.writer.DeleteUser)
	if err != nil {
		return report, err
	}

	log.Printf("sync: users done: created %d/%d, updated %d/%d, deleted %d/%d",
		report.Created.Succeeded, len(diff.ToCreate),
		report.Updated.Succeeded, len(diff.ToUpdate),
		report.Deleted.Succeeded, len(diff.ToDelete))
	return report, nil
}

func (o *Orchestrator) syncGroups(ctx context.Context, local []dirdomain.Group, sessionID int) (EntityReport, error) {
	var report EntityReport

	remote, err := o.reader.ListGroups(ctx, false)
	if err != nil {
		return report, fmt.Errorf("list portal groups: %w", err)
	}

	diff := Compute(local, remote,
		func(g dirdomain.Group) string { return g.ID },
		func(r portaldomain.GroupRecord) string { return r.ID },
		func(r portaldomain.GroupRecord) bool { return r.IsDeleted },
	)
	log.Printf("sync: groups: %d to create, %d to update, %d to delete",
		len(diff.ToCreate), len(diff.ToUpdate), len(diff.ToDelete))

	describeGroup := func(g dirdomain.Group) string { return g.ID }
	report.Created, err = Apply(ctx, "create group", diff.ToCreate, describeGroup,
		func(ctx context.Context, g dirdomain.Group) error {
			return o.writer.CreateGroup(ctx, groupRecord(g, sessionID))
		})
	if err != nil {
		return report, err
	}
	report.Updated, err = Apply(ctx, "update group", diff.ToUpdate, describeGroup,
		func(ctx context.Context, g dirdomain.Group) error {
			return o.writer.UpdateGroup(ctx, groupRecord(g, sessionID))
		})
	if err != nil {
		return report, err
	}
	report.Deleted, err = Apply(ctx, "delete group", diff.ToDelete,
		func(id string) string { return id },
		o.writer.DeleteGroup)
	if err != nil {
		return report, err
	}

	log.Printf("sync: groups done: created %d/%d, updated %d/%d, deleted %d/%d",
		report.Created.Succeeded, len(diff.ToCreate),
		report.Updated.Succeeded, len(diff.ToUpdate),
		report.Deleted.Succeeded, len(diff.ToDelete))
	return report, nil
}

// syncMembers reconciles membership group by group. A group whose remote
// membership cannot be listed is logged and skipped; the remaining groups
// still reconcile.
func (o *Orchestrator) syncMembers(ctx context.Context, local []dirdomain.Group) (MemberReport, error) {
	var report MemberReport

	groups := make([]dirdomain.Group, len(local))
	copy(groups, local)
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		remoteMembers, err := o.reader.ListGroupMembers(ctx, group.ID)
		if err != nil {
			report.GroupsFailed++
			log.Printf("sync: members: group %s: list failed, skipping: %v", group.ID, err)
			continue
		}

		toAdd, toRemove := DiffMembers(group.MemberIDs, remoteMembers)
		if len(toAdd) == 0 && len(toRemove) == 0 {
			continue
		}
		log.Printf("sync: members: group %s: %d to add, %d to remove", group.ID, len(toAdd), len(toRemove))

		groupID := group.ID
		added, err := Apply(ctx, "add member", toAdd,
			func(id string) string { return groupID + "/" + id },
			func(ctx context.Context, id string) error {
				return o.writer.AddGroupMember(ctx, groupID, id)
			})
		report.Added.Succeeded += added.Succeeded
		report.Added.Failed += added.Failed
		report.Added.Errors = append(report.Added.Errors, added.Errors...)
		if err != nil {
			return report, err
		}

		removed, err := Apply(ctx, "remove member", toRemove,
			func(id string) string { return groupID + "/" + id },
			func(ctx context.Context, id string) error {
				return o.writer.RemoveGroupMember(ctx, groupID, id)
			})
		report.Removed.Succeeded += removed.Succeeded
		report.Removed.Failed += removed.Failed
		report.Removed.Errors = append(report.Removed.Errors, removed.Errors...)
		if err != nil {
			return report, err
		}
	}

	log.Printf("sync: members done: added %d, removed %d, %d groups skipped",
		report.Added.Succeeded, report.Removed.Succeeded, report.GroupsFailed)
	return report, nil
}

func userRecord(u dirdomain.User, sessionID int) portaldomain.UserRecord {
	return portaldomain.UserRecord{
		ID:          u.ID,
		AccountName: u.AccountName,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		FirstName:   u.FirstName,
		Surname:     u.Surname,
		Enabled:     u.Enabled,
		WhenCreated: u.WhenCreated,
		LastLogon:   u.LastLogon,
		UploadID:    sessionID,
	}
}

func groupRecord(g dirdomain.Group, sessionID int) portaldomain.GroupRecord {
	return portaldomain.GroupRecord{
		ID:          g.ID,
		Name:        g.Name,
		WhenCreated: g.WhenCreated,
		UploadID:    sessionID,
	}
}
