package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotFound marks 404 responses so callers can distinguish "the resource is
// already gone" from a real failure (errors.Is).
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the Bitbucket Server REST API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bitbucket api: %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("bitbucket api: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

type Client struct {
	base *url.URL
	http *http.Client
}

type options struct {
	verbose bool
	// writer controls where verbose HTTP logs are written (typically stderr)
	// so regular output on stdout stays clean and tests can capture logs.
	writer io.Writer
}

type Option func(*options)

func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] bitbucket api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] bitbucket api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] bitbucket api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

// basicAuthTransport adds HTTP basic credentials to every request.
type basicAuthTransport struct {
	base     http.RoundTripper
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(clone)
}

// NewClient builds a Bitbucket Server client. If username is non-empty the
// token is sent as a basic-auth password, otherwise as a bearer token.
func NewClient(baseURL, username, token string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("bitbucket client: invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("bitbucket client: base URL %q must include scheme and host", baseURL)
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, w: o.writer}
	}
	switch {
	case username != "":
		transport = &basicAuthTransport{base: transport, username: username, password: token}
	case token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}

	return &Client{
		base: base,
		http: &http.Client{Transport: transport},
	}, nil
}

const pageLimit = 1000

// ListRepositories returns the names of every repository in a project.
func (c *Client) ListRepositories(ctx context.Context, project string) ([]string, error) {
	path := fmt.Sprintf("/rest/api/latest/projects/%s/repos?limit=%d", url.PathEscape(project), pageLimit)
	var page pagedResponse[repository]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	if !page.IsLastPage {
		return nil, fmt.Errorf("bitbucket api: project %s has more than %d repositories; listing truncated", project, pageLimit)
	}
	names := make([]string, 0, len(page.Values))
	for _, r := range page.Values {
		names = append(names, r.Name)
	}
	return names, nil
}

// ListBranches returns every branch of a repository in listing order.
func (c *Client) ListBranches(ctx context.Context, project, repo string) ([]Branch, error) {
	path := fmt.Sprintf("/rest/api/latest/projects/%s/repos/%s/branches?limit=%d",
		url.PathEscape(project), url.PathEscape(repo), pageLimit)
	var page pagedResponse[Branch]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	if !page.IsLastPage {
		return nil, fmt.Errorf("bitbucket api: repository %s has more than %d branches; listing truncated", repo, pageLimit)
	}
	return page.Values, nil
}

// GetCommitDate resolves a commit reference to its committer date, truncated
// to day granularity in UTC.
func (c *Client) GetCommitDate(ctx context.Context, project, repo, commitID string) (time.Time, error) {
	path := fmt.Sprintf("/rest/api/1.0/projects/%s/repos/%s/commits/%s",
		url.PathEscape(project), url.PathEscape(repo), url.PathEscape(commitID))
	var stats commitStats
	if err := c.get(ctx, path, &stats); err != nil {
		return time.Time{}, err
	}
	t := time.UnixMilli(stats.CommitterTimestamp).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ListRestrictions returns the branch-permission rules of a repository.
func (c *Client) ListRestrictions(ctx context.Context, project, repo string) ([]Restriction, error) {
	path := fmt.Sprintf("/rest/branch-permissions/latest/projects/%s/repos/%s/restrictions",
		url.PathEscape(project), url.PathEscape(repo))
	var page pagedResponse[Restriction]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// DeleteRestriction removes one branch-permission rule by id.
func (c *Client) DeleteRestriction(ctx context.Context, project, repo string, id int64) error {
	path := fmt.Sprintf("/rest/branch-permissions/latest/projects/%s/repos/%s/restrictions/%s",
		url.PathEscape(project), url.PathEscape(repo), strconv.FormatInt(id, 10))
	return c.delete(ctx, path, nil)
}

// DeleteBranch deletes a branch by display name and commit reference. The
// endPoint guards against deleting a branch that moved after the caller last
// looked at it.
func (c *Client) DeleteBranch(ctx context.Context, project, repo, name, endPoint string) error {
	path := fmt.Sprintf("/rest/branch-utils/latest/projects/%s/repos/%s/branches",
		url.PathEscape(project), url.PathEscape(repo))
	body := map[string]string{
		"name":     name,
		"endPoint": endPoint,
	}
	return c.delete(ctx, path, body)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bitbucket api: %s %s: %w", http.MethodGet, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp, http.MethodGet, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bitbucket api: %s %s: decode response: %w", http.MethodGet, path, err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, path string, body any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bitbucket api: %s %s: encode body: %w", http.MethodDelete, path, err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bitbucket api: %s %s: %w", http.MethodDelete, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return newAPIError(resp, http.MethodDelete, path)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("bitbucket api: invalid path %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("bitbucket api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func newAPIError(resp *http.Response, method, path string) *APIError {
	// Keep the message short; Bitbucket error payloads can be large.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := ""
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		msg = parsed.Errors[0].Message
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       path,
		Message:    msg,
	}
}
