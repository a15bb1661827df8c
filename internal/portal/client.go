package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"license-monitor/agent/internal/portal/domain"
)

const (
	defaultTimeout = 30 * time.Second

	// tokenSlack re-authenticates slightly before the bearer token expires so
	// a request is never sent with a token about to lapse mid-flight.
	tokenSlack = 30 * time.Second

	// fallbackTokenTTL is assumed when the token carries no readable expiry.
	fallbackTokenTTL = 15 * time.Minute
)

// Client talks JSON over HTTP to the license portal. It implements Reader,
// Writer, Sessions, Accounts, and LicenseReporter. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	deviceID   string
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient returns a portal client for the given base URL. The API key is
// exchanged for a bearer token on first use and re-exchanged near expiry.
func NewClient(baseURL, apiKey, deviceID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		deviceID:   deviceID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListUsers returns the portal's user records, optionally active-only.
func (c *Client) ListUsers(ctx context.Context, activeOnly bool) ([]domain.UserRecord, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("active", "true")
	}
	var users []domain.UserRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/users", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListGroups returns the portal's group records, optionally active-only.
func (c *Client) ListGroups(ctx context.Context, activeOnly bool) ([]domain.GroupRecord, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("active", "true")
	}
	var groups []domain.GroupRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/groups", q, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListGroupMembers returns the user IDs recorded as members of the group.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	var resp struct {
		UserIDs []string `json:"userIds"`
	}
	path := "/api/v1/groups/" + url.PathEscape(groupID) + "/members"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.UserIDs, nil
}

func (c *Client) CreateUser(ctx context.Context, record domain.UserRecord) error {
	return c.do(ctx, http.MethodPost, "/api/v1/users", nil, record, nil)
}

func (c *Client) UpdateUser(ctx context.Context, record domain.UserRecord) error {
	return c.do(ctx, http.MethodPut, "/api/v1/users/"+url.PathEscape(record.ID), nil, record, nil)
}

// DeleteUser soft-deletes the user record; the portal keeps it with isDeleted set.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/users/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateGroup(ctx context.Context, record domain.GroupRecord) error {
	return c.do(ctx, http.MethodPost, "/api/v1/groups", nil, record, nil)
}

func (c *Client) UpdateGroup(ctx context.Context, record domain.GroupRecord) error {
	return c.do(ctx, http.MethodPut, "/api/v1/groups/"+url.PathEscape(record.ID), nil, record, nil)
}

// DeleteGroup soft-deletes the group record.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/groups/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AddGroupMember(ctx context.Context, groupID, userID string) error {
	path := "/api/v1/groups/" + url.PathEscape(groupID) + "/members/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	path := "/api/v1/groups/" + url.PathEscape(groupID) + "/members/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// GetUploadStatus returns the device's call-in status for the current cycle.
func (c *Client) GetUploadStatus(ctx context.Context, deviceID string) (domain.CallInStatus, error) {
	q := url.Values{"deviceId": {deviceID}}
	var resp struct {
		Status domain.CallInStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/uploads/status", q, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// GetUploadSessionID returns the existing session ID for the device, or
// ErrNotFound when the portal has none.
func (c *Client) GetUploadSessionID(ctx context.Context, deviceID string) (int, error) {
	q := url.Values{"deviceId": {deviceID}}
	var resp struct {
		ID int `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/uploads/id", q, nil, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// CreateUploadSession registers a new upload session and returns its ID.
func (c *Client) CreateUploadSession(ctx context.Context, session domain.UploadSession) (int, error) {
	var resp struct {
		ID int `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/uploads", nil, session, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// CheckIn marks the session as called in, stamping hostname, client version,
// and check-in time. Calling it again for the same session only refreshes the
// timestamp.
func (c *Client) CheckIn(ctx context.Context, sessionID int, hostname, clientVersion string) error {
	body := struct {
		Hostname      string    `json:"hostname"`
		ClientVersion string    `json:"clientVersion"`
		CheckInTime   time.Time `json:"checkInTime"`
	}{hostname, clientVersion, time.Now().UTC()}
	path := "/api/v1/uploads/" + strconv.Itoa(sessionID) + "/checkin"
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// AccountID returns the billing account the device belongs to.
func (c *Client) AccountID(ctx context.Context, deviceID string) (int, error) {
	q := url.Values{"deviceId": {deviceID}}
	var resp struct {
		AccountID int `json:"accountId"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/account", q, nil, &resp); err != nil {
		return 0, err
	}
	return resp.AccountID, nil
}

// ReportLicense submits the licensing-check result for the cycle.
func (c *Client) ReportLicense(ctx context.Context, report domain.LicenseReport) error {
	return c.do(ctx, http.MethodPost, "/api/v1/licenses", nil, report, nil)
}

// do performs one authenticated JSON round trip. body and out may be nil.
// A 404 response maps to ErrNotFound; other non-2xx statuses return an error
// carrying status and response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("portal: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("portal: %s %s: status=%d body=%s", method, path, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("portal: %s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

// bearer returns a valid bearer token, exchanging the API key when the cached
// token is missing or close to expiry.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp.Add(-tokenSlack)) {
		return c.token, nil
	}

	body, err := json.Marshal(struct {
		DeviceID string `json:"deviceId"`
		APIKey   string `json:"apiKey"`
	}{c.deviceID, c.apiKey})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("portal: auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("portal: auth: status=%d body=%s", resp.StatusCode, string(b))
	}

	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("portal: auth: decode: %w", err)
	}
	if tokenResp.Token == "" {
		return "", fmt.Errorf("portal: auth: empty token")
	}

	c.token = tokenResp.Token
	c.tokenExp = tokenExpiry(tokenResp.Token)
	return c.token, nil
}

// tokenExpiry reads the exp claim without verifying the signature — the
// portal signs its own tokens, the agent only needs to know when to renew.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(fallbackTokenTTL)
}
