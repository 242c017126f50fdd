package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// Client talks to the attendance backend. All requests carry a bearer token
// when an identity is present; the Transport wired into the http.Client owns
// token attachment and 401 replay.
type Client struct {
	http    *http.Client
	baseURL string
	logger  Logger
}

var _ ProfileService = (*Client)(nil)
var _ AttendanceAPI = (*Client)(nil)

// NewClient returns a client rooted at baseURL. A nil httpClient falls back
// to http.DefaultClient, which skips token handling entirely.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  defLogger{},
	}
}

// NewClientFromConfig builds the http.Client (timeout, transport, refresh
// coordinator) from cfg and the given token source.
func NewClientFromConfig(cfg *Config, tokens TokenSource, refresh *RefreshCoordinator) *Client {
	transport := NewTransport(tokens, refresh).
		WithPolicy(cfg.Policy()).
		WithTokenLeeway(cfg.TokenLeeway)

	return NewClient(cfg.APIBaseURL, &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
	})
}

func (c *Client) WithLogger(logger Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// ProfileByIdentity implements ProfileService.
func (c *Client) ProfileByIdentity(ctx context.Context, identityID string) (*UserProfile, error) {
	var envelope struct {
		User UserProfile `json:"user"`
	}
	path := "/users/firebase/" + url.PathEscape(identityID)
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// CreateProfile implements ProfileService.
func (c *Client) CreateProfile(ctx context.Context, in CreateProfileInput) (*UserProfile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var envelope struct {
		User UserProfile `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/users", in, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// MyQRCode fetches the signed-in student's personal check-in code.
func (c *Client) MyQRCode(ctx context.Context) (*StudentQR, error) {
	out := &StudentQR{}
	if err := c.do(ctx, http.MethodGet, "/qr-code/my-qr", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassQRCode implements AttendanceAPI.
func (c *Client) ClassQRCode(ctx context.Context, classID string) (*ClassQR, error) {
	out := &ClassQR{}
	path := "/qr-code/class/" + url.PathEscape(classID)
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitScan implements AttendanceAPI.
func (c *Client) SubmitScan(ctx context.Context, sub ScanSubmission) (*ScanResult, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	out := &ScanResult{}
	if err := c.do(ctx, http.MethodPost, "/qr-code/scan", sub, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyClasses implements AttendanceAPI.
func (c *Client) MyClasses(ctx context.Context) ([]Class, error) {
	var envelope struct {
		Classes []Class `json:"classes"`
	}
	if err := c.do(ctx, http.MethodGet, "/classes/my-classes", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Classes, nil
}

// ListUsers fetches every profile. Admin only; authorization is enforced
// server-side.
func (c *Client) ListUsers(ctx context.Context) ([]UserProfile, error) {
	var envelope struct {
		Users []UserProfile `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Users, nil
}

// AdminUserPayload creates or updates a user through the admin surface.
type AdminUserPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

// AdminCreateUser provisions a user account plus profile in one call.
func (c *Client) AdminCreateUser(ctx context.Context, payload AdminUserPayload) (*UserProfile, error) {
	var envelope struct {
		User UserProfile `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/create-user", payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// AdminUpdateUser updates a user's profile fields.
func (c *Client) AdminUpdateUser(ctx context.Context, id string, payload AdminUserPayload) (*UserProfile, error) {
	var envelope struct {
		User UserProfile `json:"user"`
	}
	path := "/admin/update-user/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// AdminDeleteUser removes a user account and profile.
func (c *Client) AdminDeleteUser(ctx context.Context, id string) error {
	path := "/admin/delete-user/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ClassPayload creates or updates a class.
type ClassPayload struct {
	Name    string `json:"name"`
	Teacher string `json:"teacher,omitempty"`
}

// ListClasses fetches every class. Admin only.
func (c *Client) ListClasses(ctx context.Context) ([]Class, error) {
	var envelope struct {
		Classes []Class `json:"classes"`
	}
	if err := c.do(ctx, http.MethodGet, "/classes", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Classes, nil
}

// CreateClass creates a class.
func (c *Client) CreateClass(ctx context.Context, payload ClassPayload) (*Class, error) {
	var envelope struct {
		Class Class `json:"class"`
	}
	if err := c.do(ctx, http.MethodPost, "/classes", payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Class, nil
}

// UpdateClass updates a class.
func (c *Client) UpdateClass(ctx context.Context, id string, payload ClassPayload) (*Class, error) {
	var envelope struct {
		Class Class `json:"class"`
	}
	if err := c.do(ctx, http.MethodPut, "/classes/"+url.PathEscape(id), payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Class, nil
}

// DeleteClass removes a class.
func (c *Client) DeleteClass(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/classes/"+url.PathEscape(id), nil, nil)
}

// ClassStudents lists the students enrolled in a class.
func (c *Client) ClassStudents(ctx context.Context, classID string) ([]UserProfile, error) {
	var envelope struct {
		Students []UserProfile `json:"students"`
	}
	path := "/classes/" + url.PathEscape(classID) + "/students"
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Students, nil
}

// AssignStudents enrolls students into a class.
func (c *Client) AssignStudents(ctx context.Context, classID string, studentIDs []string) error {
	payload := struct {
		StudentIDs []string `json:"studentIds"`
	}{StudentIDs: studentIDs}
	path := "/classes/" + url.PathEscape(classID) + "/students"
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// RemoveStudent unenrolls a student from a class.
func (c *Client) RemoveStudent(ctx context.Context, classID, studentID string) error {
	path := "/classes/" + url.PathEscape(classID) + "/students/" + url.PathEscape(studentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if IsTokenRefreshError(err) {
			return err
		}
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return errors.Wrap(err, errors.CategoryOperation, "request failed").
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := c.apiError(resp.StatusCode, method, path, data)
		c.logger.Debug("backend error %s %s: %s", method, path, print.MaybePrettyJSON(apiErr.Metadata))
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode response body")
	}
	return nil
}

// apiError turns a non-2xx response into a rich error carrying the
// server-provided message verbatim when one is present.
func (c *Client) apiError(status int, method, path string, body []byte) *errors.Error {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}

	category := errors.CategoryOperation
	switch status {
	case http.StatusBadRequest:
		category = errors.CategoryBadInput
	case http.StatusUnauthorized:
		category = errors.CategoryAuth
	case http.StatusForbidden:
		category = errors.CategoryAuthz
	case http.StatusNotFound:
		category = errors.CategoryNotFound
	case http.StatusConflict:
		category = errors.CategoryConflict
	}

	return errors.New(message, category).
		WithCode(status).
		WithMetadata(map[string]any{
			"status": status,
			"method": method,
			"path":   path,
		})
}
