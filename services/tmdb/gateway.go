package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

const (
	// DefaultBaseURL is the TMDB v3 REST endpoint.
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// DefaultLanguage is sent when no language is configured.
	DefaultLanguage = "en-US"

	maxErrorBody = 4 << 10
)

// ErrNotConfigured means the service has no TMDB API key. It is a
// configuration problem, distinct from TMDB being unreachable.
var ErrNotConfigured = errors.New("TMDB API key is not configured")

// UpstreamError reports a failed TMDB request. Message never contains the
// request URL, so the API key cannot leak through it.
type UpstreamError struct {
	StatusCode int // 0 for transport failures
	Message    string
}

func (e *UpstreamError) Error() string {
	return "TMDB request failed: " + e.Message
}

// Gateway performs authenticated GET requests against TMDB.
type Gateway struct {
	apiKey   string
	language string
	baseURL  string
	client   *http.Client
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithBaseURL points the gateway at another host, used by tests.
func WithBaseURL(baseURL string) GatewayOption {
	return func(g *Gateway) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the client used for outbound requests.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// NewGateway creates a gateway. An empty apiKey yields a gateway whose every
// call fails with ErrNotConfigured.
func NewGateway(apiKey, lang string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		apiKey:   strings.TrimSpace(apiKey),
		language: normalizeLanguage(lang),
		baseURL:  DefaultBaseURL,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether an API key is present.
func (g *Gateway) Configured() bool {
	return g != nil && g.apiKey != ""
}

// Fetch issues GET {baseURL}{path} and decodes the JSON body into out.
// language and api_key are always set by the gateway; caller values for
// those keys are discarded.
func (g *Gateway) Fetch(ctx context.Context, path string, query url.Values, out any) error {
	if !g.Configured() {
		return ErrNotConfigured
	}

	params := url.Values{}
	for key, values := range query {
		params[key] = append([]string(nil), values...)
	}
	params.Set("language", g.language)
	params.Set("api_key", g.apiKey)

	endpoint := g.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &UpstreamError{Message: "build request"}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		msg := err.Error()
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			msg = urlErr.Err.Error()
		}
		log.Printf("[tmdb] GET %s failed: %s", path, msg)
		return &UpstreamError{Message: msg}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := upstreamStatusMessage(resp)
		log.Printf("[tmdb] GET %s returned %s", path, msg)
		return &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Printf("[tmdb] GET %s decode failed: %v", path, err)
		return &UpstreamError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// upstreamStatusMessage renders "<status>" plus TMDB's status_message when present.
func upstreamStatusMessage(resp *http.Response) string {
	msg := resp.Status
	if msg == "" {
		msg = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.StatusMessage != "" {
		msg += ": " + payload.StatusMessage
	}
	return msg
}

// normalizeLanguage canonicalises a BCP 47 tag, falling back to en-US.
func normalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(raw)
	if err != nil {
		log.Printf("[tmdb] invalid language %q, using %s", raw, DefaultLanguage)
		return DefaultLanguage
	}
	return tag.String()
}
