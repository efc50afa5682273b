// Package acrcloud identifies audio samples against the ACRCloud
// fingerprinting service.
package acrcloud

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"tracklistify/internal/identify"
)

const (
	endpoint         = "/v1/identify"
	dataType         = "audio"
	signatureVersion = "1"
)

// ACRCloud status codes.
const (
	codeSuccess     = 0
	codeNoResult    = 1001
	codeInvalidKey  = 3001
	codeLimitExceed = 3003
)

// Client is an ACRCloud identification client implementing identify.Provider.
type Client struct {
	accessKey    string
	accessSecret string
	httpClient   *http.Client

	// Overridable for testing
	apiURL string

	// Overridable for testing; returns the current unix timestamp.
	now func() time.Time
}

// New creates a new ACRCloud client for the given host.
func New(accessKey, accessSecret, host string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		accessKey:    accessKey,
		accessSecret: accessSecret,
		httpClient:   &http.Client{Timeout: timeout},
		apiURL:       "https://" + host,
		now:          time.Now,
	}
}

func (c *Client) Name() string { return "acrcloud" }

// Identify fingerprints the sample against ACRCloud and returns the best hit.
func (c *Client) Identify(ctx context.Context, sample []byte) (*identify.Match, error) {
	if len(sample) == 0 {
		return nil, c.wrap(fmt.Errorf("empty sample"))
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := c.sign(timestamp)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"access_key":        c.accessKey,
		"sample_bytes":      strconv.Itoa(len(sample)),
		"timestamp":         timestamp,
		"signature":         signature,
		"data_type":         dataType,
		"signature_version": signatureVersion,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, c.wrap(fmt.Errorf("build request form: %w", err))
		}
	}
	part, err := writer.CreateFormFile("sample", "sample")
	if err != nil {
		return nil, c.wrap(fmt.Errorf("build request form: %w", err))
	}
	if _, err := part.Write(sample); err != nil {
		return nil, c.wrap(fmt.Errorf("build request form: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, c.wrap(fmt.Errorf("build request form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+endpoint, &body)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("create identify request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.doWithRetry(req, body.Bytes())
	if err != nil {
		return nil, c.wrap(fmt.Errorf("identify request failed: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, c.wrap(identify.ErrAuth)
	case http.StatusTooManyRequests:
		return nil, c.wrap(identify.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, c.wrap(fmt.Errorf("identify returned %d: %s", resp.StatusCode, payload))
	}

	var parsed identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, c.wrap(fmt.Errorf("decode identify response: %w", err))
	}

	switch parsed.Status.Code {
	case codeSuccess:
	case codeNoResult:
		return nil, c.wrap(identify.ErrNoMatch)
	case codeInvalidKey:
		return nil, c.wrap(identify.ErrAuth)
	case codeLimitExceed:
		return nil, c.wrap(identify.ErrRateLimited)
	default:
		return nil, c.wrap(fmt.Errorf("service error %d: %s", parsed.Status.Code, parsed.Status.Msg))
	}

	if len(parsed.Metadata.Music) == 0 {
		return nil, c.wrap(identify.ErrNoMatch)
	}
	return toMatch(parsed.Metadata.Music[0]), nil
}

// sign builds the request signature: an HMAC-SHA1 over the method, endpoint,
// key, data type, signature version, and timestamp, base64 encoded.
func (c *Client) sign(timestamp string) string {
	stringToSign := "POST" + "\n" + endpoint + "\n" + c.accessKey + "\n" +
		dataType + "\n" + signatureVersion + "\n" + timestamp

	mac := hmac.New(sha1.New, []byte(c.accessSecret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// doWithRetry executes the request, retrying once on 429. The multipart body
// is rebuilt from the buffered bytes for the retry.
func (c *Client) doWithRetry(req *http.Request, body []byte) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		retryAfter := 1
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}
		time.Sleep(time.Duration(retryAfter) * time.Second)

		retry := req.Clone(req.Context())
		retry.Body = io.NopCloser(bytes.NewReader(body))
		return c.httpClient.Do(retry)
	}

	return resp, nil
}

func (c *Client) wrap(err error) error {
	return &identify.IdentificationError{Provider: c.Name(), Err: err}
}

func toMatch(m musicItem) *identify.Match {
	artist := ""
	if len(m.Artists) > 0 {
		artist = m.Artists[0].Name
	}
	return &identify.Match{
		Title:      m.Title,
		Artist:     artist,
		Album:      m.Album.Name,
		Confidence: m.Score,
		Duration:   float64(m.DurationMs) / 1000,
	}
}

// ACRCloud API response types

type identifyResponse struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Metadata struct {
		Music []musicItem `json:"music"`
	} `json:"metadata"`
}

type musicItem struct {
	Title      string        `json:"title"`
	Score      float32       `json:"score"`
	DurationMs int           `json:"duration_ms"`
	Artists    []musicCredit `json:"artists"`
	Album      struct {
		Name string `json:"name"`
	} `json:"album"`
}

type musicCredit struct {
	Name string `json:"name"`
}
