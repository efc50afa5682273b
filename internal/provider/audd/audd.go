// Package audd identifies audio samples against the AudD recognition
// service.
package audd

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

	"tracklistify/internal/identify"
)

// AudD reports no match score, so every hit carries this confidence.
const defaultConfidence = 70

// AudD error codes.
const (
	codeWrongToken    = 900
	codeLimitReached  = 901
	codeRecognizeFail = 300
)

// Client is an AudD recognition client implementing identify.Provider.
type Client struct {
	apiToken   string
	httpClient *http.Client

	// Overridable for testing
	apiURL string
}

// New creates a new AudD client.
func New(apiToken string) *Client {
	return &Client{
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiURL:     "https://api.audd.io/",
	}
}

func (c *Client) Name() string { return "audd" }

// Identify sends the sample to AudD and returns the recognized track.
func (c *Client) Identify(ctx context.Context, sample []byte) (*identify.Match, error) {
	if len(sample) == 0 {
		return nil, c.wrap(fmt.Errorf("empty sample"))
	}

	form := url.Values{
		"api_token": {c.apiToken},
		"audio":     {base64.StdEncoding.EncodeToString(sample)},
		"return":    {"timecode"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, c.wrap(fmt.Errorf("create recognize request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("recognize request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, c.wrap(fmt.Errorf("recognize returned %d: %s", resp.StatusCode, payload))
	}

	var parsed recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, c.wrap(fmt.Errorf("decode recognize response: %w", err))
	}

	if parsed.Status == "error" {
		switch parsed.Error.ErrorCode {
		case codeWrongToken:
			return nil, c.wrap(identify.ErrAuth)
		case codeLimitReached:
			return nil, c.wrap(identify.ErrRateLimited)
		default:
			return nil, c.wrap(fmt.Errorf("service error %d: %s", parsed.Error.ErrorCode, parsed.Error.ErrorMessage))
		}
	}

	if parsed.Result == nil || parsed.Result.Title == "" {
		return nil, c.wrap(identify.ErrNoMatch)
	}

	return &identify.Match{
		Title:      parsed.Result.Title,
		Artist:     parsed.Result.Artist,
		Album:      parsed.Result.Album,
		Confidence: defaultConfidence,
	}, nil
}

func (c *Client) wrap(err error) error {
	return &identify.IdentificationError{Provider: c.Name(), Err: err}
}

// AudD API response types

type recognizeResponse struct {
	Status string        `json:"status"`
	Result *recognizeHit `json:"result"`
	Error  struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"error"`
}

type recognizeHit struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	ReleaseDate string `json:"release_date"`
}
