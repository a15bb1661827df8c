// Package ldap implements directory.Reader against an LDAP directory
// (Active Directory in production deployments).
package ldap

import (
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"time"

	"github.com/go-ldap/ldap/v3"

	"license-monitor/agent/internal/directory"
	"license-monitor/agent/internal/directory/domain"
)

const (
	userFilter = "(&(objectCategory=person)(objectClass=user))"
	// security groups only; matches ADS_GROUP_TYPE_SECURITY_ENABLED via the
	// LDAP_MATCHING_RULE_BIT_AND extensible match.
	groupFilter = "(&(objectClass=group)(groupType:1.2.840.113556.1.4.803:=2147483648))"

	dialTimeout = 10 * time.Second
)

var userAttributes = []string{
	"objectGUID", "sAMAccountName", "displayName", "mail",
	"givenName", "sn", "userAccountControl", "whenCreated", "lastLogonTimestamp",
}

var groupAttributes = []string{"objectGUID", "cn", "whenCreated", "member"}

// Client reads users and groups from an LDAP directory. Every listing call
// dials a fresh connection so a pass always sees current directory state.
type Client struct {
	url      string
	baseDN   string
	bindDN   string
	password string
	pageSize uint32
}

// NewClient returns a Client for the given directory server and search base.
func NewClient(url, baseDN, bindDN, password string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Client{
		url:      url,
		baseDN:   baseDN,
		bindDN:   bindDN,
		password: password,
		pageSize: uint32(pageSize),
	}
}

// connect dials and binds. Failures wrap directory.ErrUnavailable so callers
// can distinguish an unreachable directory from a bad entry.
func (c *Client) connect(ctx context.Context) (*ldap.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialer.Timeout = remaining
		}
	}

	conn, err := ldap.DialURL(c.url, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", directory.ErrUnavailable, c.url, err)
	}

	if err := conn.Bind(c.bindDN, c.password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: bind as %s: %v", directory.ErrUnavailable, c.bindDN, err)
	}

	return conn, nil
}

// ListUsers returns a snapshot of every user account, with group membership
// reverse-mapped from the groups' member attributes.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	groupsByMemberDN, err := c.groupIDsByMemberDN(conn)
	if err != nil {
		return nil, err
	}

	result, err := c.search(conn, userFilter, userAttributes)
	if err != nil {
		return nil, fmt.Errorf("%w: user search: %v", directory.ErrUnavailable, err)
	}

	users := make([]domain.User, 0, len(result.Entries))
	for _, entry := range result.Entries {
		user, err := parseUser(entry)
		if err != nil {
			// Missing or malformed identifier attributes: skip the principal
			// and keep going, per the stated enumeration contract.
			log.Printf("ldap: skipping %s: %v", entry.DN, err)
			continue
		}
		user.GroupIDs = groupsByMemberDN[entry.DN]
		sort.Strings(user.GroupIDs)
		users = append(users, user)
	}
	return users, nil
}

// ListGroups returns a snapshot of every security group with member user IDs
// resolved from member DNs. Members that cannot be resolved to a user
// identifier (nested groups, foreign principals, tombstones) are skipped.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	userIDByDN, err := c.userIDsByDN(conn)
	if err != nil {
		return nil, err
	}

	result, err := c.search(conn, groupFilter, groupAttributes)
	if err != nil {
		return nil, fmt.Errorf("%w: group search: %v", directory.ErrUnavailable, err)
	}

	groups := make([]domain.Group, 0, len(result.Entries))
	for _, entry := range result.Entries {
		group, err := parseGroup(entry)
		if err != nil {
			log.Printf("ldap: skipping %s: %v", entry.DN, err)
			continue
		}
		group.MemberIDs = resolveMembers(entry, userIDByDN)
		groups = append(groups, group)
	}
	return groups, nil
}

// ListGroupMembers returns the user IDs belonging to one group.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	filterValue, err := guidFilterValue(groupID)
	if err != nil {
		return nil, err
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result, err := c.search(conn, fmt.Sprintf("(&(objectClass=group)(objectGUID=%s))", filterValue), groupAttributes)
	if err != nil {
		return nil, fmt.Errorf("%w: group lookup %s: %v", directory.ErrUnavailable, groupID, err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("group %s not found in directory", groupID)
	}

	userIDByDN, err := c.userIDsByDN(conn)
	if err != nil {
		return nil, err
	}
	return resolveMembers(result.Entries[0], userIDByDN), nil
}

// IsPrimaryDomainController reports whether the directory server this client
// talks to owns the PDC emulator role. The agent is expected to point at the
// local domain controller.
func (c *Client) IsPrimaryDomainController(ctx context.Context) (bool, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	rootDSE := ldap.NewSearchRequest(
		"", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)", []string{"serverName"}, nil,
	)
	rootResult, err := conn.Search(rootDSE)
	if err != nil || len(rootResult.Entries) == 0 {
		return false, fmt.Errorf("%w: root DSE: %v", directory.ErrUnavailable, err)
	}
	serverName := rootResult.Entries[0].GetAttributeValue("serverName")

	domainHead := ldap.NewSearchRequest(
		c.baseDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)", []string{"fSMORoleOwner"}, nil,
	)
	domainResult, err := conn.Search(domainHead)
	if err != nil || len(domainResult.Entries) == 0 {
		return false, fmt.Errorf("%w: domain head: %v", directory.ErrUnavailable, err)
	}
	roleOwner := domainResult.Entries[0].GetAttributeValue("fSMORoleOwner")

	// fSMORoleOwner is the NTDS Settings object under the owning server.
	return serverName != "" && roleOwner == "CN=NTDS Settings,"+serverName, nil
}

func (c *Client) search(conn *ldap.Conn, filter string, attributes []string) (*ldap.SearchResult, error) {
	req := ldap.NewSearchRequest(
		c.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attributes,
		nil,
	)
	return conn.SearchWithPaging(req, c.pageSize)
}

// groupIDsByMemberDN maps each member DN to the IDs of the groups it belongs to.
func (c *Client) groupIDsByMemberDN(conn *ldap.Conn) (map[string][]string, error) {
	result, err := c.search(conn, groupFilter, []string{"objectGUID", "member"})
	if err != nil {
		return nil, fmt.Errorf("%w: group search: %v", directory.ErrUnavailable, err)
	}

	byDN := make(map[string][]string)
	for _, entry := range result.Entries {
		id, err := guidFromBytes(entry.GetRawAttributeValue("objectGUID"))
		if err != nil {
			log.Printf("ldap: skipping %s: %v", entry.DN, err)
			continue
		}
		for _, memberDN := range entry.GetAttributeValues("member") {
			byDN[memberDN] = append(byDN[memberDN], id)
		}
	}
	return byDN, nil
}

// userIDsByDN maps each user DN to its objectGUID.
func (c *Client) userIDsByDN(conn *ldap.Conn) (map[string]string, error) {
	result, err := c.search(conn, userFilter, []string{"objectGUID"})
	if err != nil {
		return nil, fmt.Errorf("%w: user search: %v", directory.ErrUnavailable, err)
	}

	byDN := make(map[string]string, len(result.Entries))
	for _, entry := range result.Entries {
		id, err := guidFromBytes(entry.GetRawAttributeValue("objectGUID"))
		if err != nil {
			log.Printf("ldap: skipping %s: %v", entry.DN, err)
			continue
		}
		byDN[entry.DN] = id
	}
	return byDN, nil
}

// resolveMembers turns a group's member DNs into user IDs, skipping anything
// that does not resolve to a known user. Result is sorted for determinism.
func resolveMembers(entry *ldap.Entry, userIDByDN map[string]string) []string {
	memberDNs := entry.GetAttributeValues("member")
	ids := make([]string, 0, len(memberDNs))
	for _, dn := range memberDNs {
		id, ok := userIDByDN[dn]
		if !ok {
			log.Printf("ldap: group %s: member %s is not a resolvable user, skipping", entry.DN, dn)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
