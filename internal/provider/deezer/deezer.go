// Package deezer enriches identified tracks with release metadata from the
// Deezer API, which requires no credentials.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tracklistify/internal/identify"
)

// Client is a Deezer API client that implements identify.Enricher.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new Deezer client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://api.deezer.com",
	}
}

func (c *Client) Name() string { return "deezer" }

// Enrich looks the track up on Deezer and returns its release metadata.
// A track Deezer does not know yields nil without error.
func (c *Client) Enrich(ctx context.Context, artist, title string) (*identify.Extra, error) {
	q := buildQuery(artist, title)
	if q == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&limit=1", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create deezer request: %w", err)
	}
	req.Header.Set("User-Agent", "tracklistify/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deezer search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deezer search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode deezer response: %w", err)
	}

	if searchResp.Error != nil {
		return nil, fmt.Errorf("deezer API error: %s", searchResp.Error.Message)
	}
	if len(searchResp.Data) == 0 {
		return nil, nil
	}

	item := searchResp.Data[0]
	extra := &identify.Extra{
		Album: item.Album.Title,
	}
	if item.Album.CoverXL != "" {
		extra.ArtworkURL = item.Album.CoverXL
	} else if item.Album.CoverBig != "" {
		extra.ArtworkURL = item.Album.CoverBig
	}
	return extra, nil
}

func buildQuery(artist, title string) string {
	escape := func(s string) string {
		return strings.ReplaceAll(s, "\"", "")
	}
	var parts []string
	if title != "" {
		parts = append(parts, "track:\""+escape(title)+"\"")
	}
	if artist != "" {
		parts = append(parts, "artist:\""+escape(artist)+"\"")
	}
	return strings.Join(parts, " ")
}

// Deezer API response types

type searchResponse struct {
	Data  []trackItem `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type trackItem struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	TitleShort string    `json:"title_short"`
	Artist     artist    `json:"artist"`
	Album      albumInfo `json:"album"`
}

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"`
	CoverXL  string `json:"cover_xl"`
}
