// Package modrinth is a client for the Modrinth v2 REST API.
package modrinth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rtranslator/internal/integrations"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.modrinth.com"

// SearchPageSize is the number of hits requested per search page.
const SearchPageSize = 10

// Project is the subset of a Modrinth project used for ingestion.
type Project struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	IconURL      string   `json:"icon_url"`
	ProjectType  string   `json:"project_type"`
	Loaders      []string `json:"loaders"`
	GameVersions []string `json:"game_versions"`
}

// Version is one published build of a project.
type Version struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	VersionNumber string    `json:"version_number"`
	Loaders       []string  `json:"loaders"`
	GameVersions  []string  `json:"game_versions"`
	Files         []File    `json:"files"`
	DatePublished time.Time `json:"date_published"`
}

// File is a downloadable artifact attached to a Version.
type File struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Primary  bool   `json:"primary"`
	Size     uint64 `json:"size"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Hits      []SearchHit `json:"hits"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
	TotalHits int         `json:"total_hits"`
}

// SearchHit is a project summary returned by search.
type SearchHit struct {
	ProjectID    string   `json:"project_id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	IconURL      string   `json:"icon_url"`
	ProjectType  string   `json:"project_type"`
	Author       string   `json:"author"`
	Downloads    int64    `json:"downloads"`
	GameVersions []string `json:"versions"`
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a Modrinth client rooted at baseURL (DefaultBaseURL if empty).
func NewClient(base *integrations.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{Client: base, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetProject fetches a project by id or slug.
func (c *Client) GetProject(ctx context.Context, idOrSlug string) (*Project, error) {
	var p Project
	u := c.baseURL + "/v2/project/" + url.PathEscape(idOrSlug)
	if err := c.Get(ctx, u, &p); err != nil {
		return nil, fmt.Errorf("modrinth project %s: %w", idOrSlug, err)
	}
	return &p, nil
}

// ListVersions fetches every published version of a project.
func (c *Client) ListVersions(ctx context.Context, idOrSlug string) ([]Version, error) {
	var versions []Version
	u := c.baseURL + "/v2/project/" + url.PathEscape(idOrSlug) + "/version"
	if err := c.Get(ctx, u, &versions); err != nil {
		return nil, fmt.Errorf("modrinth versions %s: %w", idOrSlug, err)
	}
	return versions, nil
}

// Search queries mods by relevance. page is zero-based.
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("facets", `[["project_type:mod"]]`)
	params.Set("index", "relevance")
	params.Set("limit", strconv.Itoa(SearchPageSize))
	params.Set("offset", strconv.Itoa(max(page, 0)*SearchPageSize))

	var res SearchResult
	if err := c.Get(ctx, c.baseURL+"/v2/search?"+params.Encode(), &res); err != nil {
		return nil, fmt.Errorf("modrinth search %q: %w", query, err)
	}
	return &res, nil
}

// PageURL returns the public web page of a mod.
func PageURL(slug string) string {
	return "https://modrinth.com/mod/" + slug
}
