// Package launchpad implements source.Source over the Launchpad REST API.
package launchpad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/source"
)

// DefaultAPIURL is the root of the public Launchpad web service.
const DefaultAPIURL = "https://api.launchpad.net/devel"

const userAgent = "lp2jira/1.0"

// Client provides anonymous read access to a single Launchpad project.
type Client struct {
	URL        string
	Project    string
	HTTPClient *http.Client
}

var _ source.Source = (*Client)(nil)

// NewClient creates a client for project rooted at apiURL.
func NewClient(apiURL, project string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		URL:     strings.TrimSuffix(apiURL, "/"),
		Project: project,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// entry is one object of the web service in its raw form.
type entry map[string]any

func (e entry) str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e entry) boolean(key string) bool {
	b, _ := e[key].(bool)
	return b
}

func (e entry) id(key string) string {
	return model.CleanID(e.str(key))
}

func (e entry) timestamp(key string) time.Time {
	s := e.str(key)
	if s == "" {
		return time.Time{}
	}
	t, err := model.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (e entry) timePtr(key string) *time.Time {
	t := e.timestamp(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (e entry) integer(key string) int {
	switch v := e[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

type collectionPage struct {
	TotalSize          int     `json:"total_size"`
	Entries            []entry `json:"entries"`
	NextCollectionLink string  `json:"next_collection_link"`
}

// resolve turns a path relative to the API root into an absolute URL. Links
// returned by the service are already absolute and are kept as they are.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.URL + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) projectURL(params url.Values) string {
	u := c.resolve(url.PathEscape(c.Project))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.doRequest(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("parse response from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) getEntry(ctx context.Context, rawURL string) (entry, error) {
	var e entry
	if err := c.getJSON(ctx, rawURL, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// collection fetches every entry of a collection by following
// next_collection_link until the last page.
func (c *Client) collection(ctx context.Context, rawURL string) ([]entry, error) {
	var all []entry
	next := rawURL
	for next != "" {
		var page collectionPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)
		next = page.NextCollectionLink
	}
	return all, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", rawURL, source.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("launchpad API returned %d for %s: %s", resp.StatusCode, rawURL, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}

// fileName asks the data link for the payload's file name without reading
// it. Launchpad redirects data links to the librarian URL, which ends in the
// uploaded file name. fallback is returned when neither the
// Content-Disposition header nor the final URL names the file.
func (c *Client) fileName(ctx context.Context, dataLink, fallback string) string {
	if dataLink == "" {
		return fallback
	}
	target := c.resolve(dataLink)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fallback
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fallback
	}

	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	if resp.Request != nil && resp.Request.URL.String() != target {
		if name := path.Base(resp.Request.URL.Path); name != "." && name != "/" {
			return name
		}
	}
	return fallback
}
