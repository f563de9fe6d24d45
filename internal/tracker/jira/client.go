// Package jira implements tracker.Tracker against the Jira REST API (v2).
package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/tracker"
)

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client
	// ExternalIDField is the id or name of the custom field holding the
	// source id of every imported issue.
	ExternalIDField string
}

var _ tracker.Tracker = (*Client)(nil)

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken, externalIDField string) *Client {
	return &Client{
		URL:             strings.TrimSuffix(url, "/"),
		Username:        username,
		APIToken:        apiToken,
		ExternalIDField: externalIDField,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiIssue is an issue as returned with expand=names,schema,changelog.
type apiIssue struct {
	Key       string                     `json:"key"`
	Fields    map[string]json.RawMessage `json:"fields"`
	Names     map[string]string          `json:"names"`
	Schema    map[string]fieldSchema     `json:"schema"`
	Changelog *changelog                 `json:"changelog"`
}

type fieldSchema struct {
	Type   string `json:"type"`
	Custom string `json:"custom"`
}

type changelog struct {
	Histories []struct {
		Author  *apiUser `json:"author"`
		Created string   `json:"created"`
		Items   []struct {
			FieldType  string  `json:"fieldtype"`
			Field      string  `json:"field"`
			From       *string `json:"from"`
			FromString *string `json:"fromString"`
			To         *string `json:"to"`
			ToString   *string `json:"toString"`
		} `json:"items"`
	} `json:"histories"`
}

type apiUser struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

type namedField struct {
	Name string `json:"name"`
}

type searchResult struct {
	StartAt    int                    `json:"startAt"`
	MaxResults int                    `json:"maxResults"`
	Total      int                    `json:"total"`
	Issues     []apiIssue             `json:"issues"`
	Names      map[string]string      `json:"names"`
	Schema     map[string]fieldSchema `json:"schema"`
}

type apiVersion struct {
	Name        string `json:"name"`
	Released    bool   `json:"released"`
	ReleaseDate string `json:"releaseDate"`
}

// Search queries Jira using JQL and returns all matching issues, handling pagination.
func (c *Client) Search(ctx context.Context, jql string) ([]tracker.Issue, error) {
	var all []tracker.Issue
	startAt := 0
	maxResults := 100

	for {
		params := url.Values{
			"jql":        {jql},
			"fields":     {"*navigable"},
			"expand":     {"names,schema"},
			"startAt":    {fmt.Sprintf("%d", startAt)},
			"maxResults": {fmt.Sprintf("%d", maxResults)},
		}
		apiURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result searchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for _, raw := range result.Issues {
			if raw.Names == nil {
				raw.Names = result.Names
			}
			if raw.Schema == nil {
				raw.Schema = result.Schema
			}
			issue, err := c.convert(raw)
			if err != nil {
				return nil, err
			}
			all = append(all, issue)
		}

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		startAt += len(result.Issues)
	}

	return all, nil
}

// Issue fetches a single Jira issue by key (e.g., "PROJ-123") with its
// comments and change history.
func (c *Client) Issue(ctx context.Context, key string) (tracker.Issue, error) {
	params := url.Values{
		"fields": {"*all"},
		"expand": {"names,schema,changelog"},
	}
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s?%s", c.URL, url.PathEscape(key), params.Encode())

	body, err := c.doRequest(ctx, http.MethodGet, apiURL)
	if err != nil {
		return tracker.Issue{}, fmt.Errorf("get issue %s: %w", key, err)
	}

	var raw apiIssue
	if err := json.Unmarshal(body, &raw); err != nil {
		return tracker.Issue{}, fmt.Errorf("parse issue response: %w", err)
	}
	return c.convert(raw)
}

// Versions lists the versions of a project.
func (c *Client) Versions(ctx context.Context, projectKey string) ([]model.Version, error) {
	apiURL := fmt.Sprintf("%s/rest/api/2/project/%s/versions", c.URL, url.PathEscape(projectKey))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL)
	if err != nil {
		return nil, fmt.Errorf("get versions of %s: %w", projectKey, err)
	}

	var raw []apiVersion
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse versions response: %w", err)
	}
	versions := make([]model.Version, 0, len(raw))
	for _, v := range raw {
		versions = append(versions, model.Version{Name: v.Name, Released: v.Released, ReleaseDate: v.ReleaseDate})
	}
	return versions, nil
}

func (c *Client) doRequest(ctx context.Context, method, apiURL string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "lp2jira/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, tracker.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// setAuth sets the appropriate authentication header on the request.
func (c *Client) setAuth(req *http.Request) {
	switch {
	case c.APIToken == "":
	case c.Username != "":
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	default:
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}
