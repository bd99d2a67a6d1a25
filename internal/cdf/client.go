// Package cdf is the authenticated client for the CDF IAM API: group
// listing, capability updates and the user profile endpoint. Transient
// failures are retried at the HTTP layer; API errors surface as *APIError.
package cdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/permafrost-io/groupctl/internal/capability"
	"github.com/permafrost-io/groupctl/internal/iam"
)

// Client talks to one customer's CDF project.
type Client struct {
	baseURL string
	project string
	http    *http.Client
	tokens  oauth2.TokenSource
}

// NewClient builds a client for a project. baseURL is the cluster base,
// e.g. "https://westeurope-1.cognitedata.com".
func NewClient(baseURL, project string, tokens oauth2.TokenSource) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.Logger = nil
	return &Client{
		baseURL: baseURL,
		project: project,
		http:    rc.StandardClient(),
		tokens:  tokens,
	}
}

// APIError is a non-2xx response from the CDF API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cdf: api error %d: %s", e.StatusCode, e.Message)
}

// ListGroups returns all groups in the project, capabilities included.
func (c *Client) ListGroups(ctx context.Context) ([]iam.Group, error) {
	var out struct {
		Items []iam.Group `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups?all=true", nil, &out); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out.Items, nil
}

// UpdateGroupCapabilities replaces a group's capability set with the given
// grants.
func (c *Client) UpdateGroupCapabilities(ctx context.Context, groupID int64, grants []capability.Grant) error {
	dumps := make([]json.RawMessage, 0, len(grants))
	for _, g := range grants {
		d, err := g.Dump()
		if err != nil {
			return fmt.Errorf("update group %d: dump grant: %w", groupID, err)
		}
		dumps = append(dumps, d)
	}

	payload := map[string]any{
		"items": []map[string]any{
			{
				"id": groupID,
				"update": map[string]any{
					"capabilities": map[string]any{"set": dumps},
				},
			},
		},
	}
	if err := c.do(ctx, http.MethodPost, "/groups/update", payload, nil); err != nil {
		return fmt.Errorf("update group %d: %w", groupID, err)
	}
	return nil
}

// UserProfile is the authenticated user's identity.
type UserProfile struct {
	UserIdentifier string `json:"userIdentifier"`
	GivenName      string `json:"givenName,omitempty"`
	Surname        string `json:"surname,omitempty"`
	Email          string `json:"email,omitempty"`
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, http.MethodGet, "/profiles/me", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + "/api/v1/projects/" + c.project + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(data)
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Error.Message != "" {
		msg = wrapped.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
