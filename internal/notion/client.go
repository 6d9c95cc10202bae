// internal/notion/client.go
//
// Notion API client: cursor pagination, database metadata, and the OAuth
// code exchange.
//
// Context
// -------
// One Client is built at boot and shared by every request.  It holds no
// credential of its own — the workspace access token is passed per call,
// so one process serves any number of connected workspaces.  Pagination
// is strictly sequential inside a source (each page depends on the
// previous cursor); concurrency across sources belongs to the feed
// aggregator, not here.
//
// Failure policy
// --------------
//   - Non-2xx on a query page aborts that source and returns whatever
//     pages were already accumulated alongside ErrUpstreamUnavailable.
//   - A page whose record list is missing or not an array stops the loop
//     the same way with ErrMalformedUpstreamResponse.
//   - ctx is checked at every page boundary so a disconnected caller
//     stops costing upstream quota.
package notion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/gridfolio/gridfolio/internal/fault"
	"github.com/gridfolio/gridfolio/internal/metrics"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
)

// Client talks to the Notion REST API.  Safe for concurrent use.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	HTTP         *http.Client
}

// New returns a Client with a bounded-timeout http.Client.  baseURL is
// overridable for tests; pass "" for production.
func New(baseURL, clientID, clientSecret, redirectURI string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
	}
}

/*──────────────────────────── pagination ──────────────────────────────────*/

// queryPage is one response from the database query endpoint.  Results is
// kept raw so a missing or non-array list can be told apart from an
// empty one.
type queryPage struct {
	Results    json.RawMessage `json:"results"`
	HasMore    bool            `json:"has_more"`
	NextCursor string          `json:"next_cursor"`
}

// FetchAll drains one database to completion and returns every record in
// arrival order.  On upstream failure the partial accumulation is
// returned together with the error; callers that merge several sources
// keep the partial result and drop only the error.
func (c *Client) FetchAll(ctx context.Context, databaseID, credential string) ([]Page, error) {
	var (
		all    []Page
		cursor string
	)

	for {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		body := map[string]string{}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		payload, _ := json.Marshal(body)

		endpoint := fmt.Sprintf("%s/v1/databases/%s/query", c.BaseURL, url.PathEscape(databaseID))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return all, err
		}
		req.Header.Set("Authorization", "Bearer "+credential)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", apiVersion)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			metrics.UpstreamErrorsTotal.Inc()
			return all, fmt.Errorf("query %s: %w", databaseID, fault.ErrUpstreamUnavailable)
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			metrics.UpstreamErrorsTotal.Inc()
			return all, fmt.Errorf("query %s: %w", databaseID, fault.ErrUpstreamUnavailable)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			metrics.UpstreamErrorsTotal.Inc()
			return all, fmt.Errorf("query %s: status %d: %w",
				databaseID, resp.StatusCode, fault.ErrUpstreamUnavailable)
		}

		var page queryPage
		if err := json.Unmarshal(raw, &page); err != nil {
			metrics.UpstreamErrorsTotal.Inc()
			return all, fmt.Errorf("query %s: %w", databaseID, fault.ErrMalformedUpstreamResponse)
		}

		var records []Page
		if page.Results == nil || json.Unmarshal(page.Results, &records) != nil {
			metrics.UpstreamErrorsTotal.Inc()
			return all, fmt.Errorf("query %s: %w", databaseID, fault.ErrMalformedUpstreamResponse)
		}

		all = append(all, records...)
		metrics.UpstreamPagesTotal.Inc()

		if !page.HasMore {
			return all, nil
		}
		if page.NextCursor == "" {
			// has_more without a cursor would replay the first page
			// forever.  Stop with what we have.
			metrics.UpstreamErrorsTotal.Inc()
			return all, fmt.Errorf("query %s: has_more without cursor: %w",
				databaseID, fault.ErrMalformedUpstreamResponse)
		}
		cursor = page.NextCursor
	}
}

/*───────────────────────── database metadata ──────────────────────────────*/

// RetrieveDatabase fetches database metadata.  Used by binding add to
// confirm the integration can reach the database and to default the
// label from its title.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID, credential string) (*Database, error) {
	endpoint := fmt.Sprintf("%s/v1/databases/%s", c.BaseURL, url.PathEscape(databaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.UpstreamErrorsTotal.Inc()
		return nil, fmt.Errorf("retrieve %s: %w", databaseID, fault.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamErrorsTotal.Inc()
		return nil, fmt.Errorf("retrieve %s: status %d: %w",
			databaseID, resp.StatusCode, fault.ErrUpstreamUnavailable)
	}

	var db Database
	if err := json.NewDecoder(resp.Body).Decode(&db); err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", databaseID, fault.ErrMalformedUpstreamResponse)
	}
	return &db, nil
}

/*──────────────────────────── OAuth leg ───────────────────────────────────*/

// AuthorizeURL builds the consent redirect.  state carries the tenant's
// setup token so the callback can resolve the scope without a session.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.ClientID)
	q.Set("response_type", "code")
	q.Set("owner", "user")
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("state", state)
	return c.BaseURL + "/v1/oauth/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a workspace credential.
// The mechanics are an opaque collaborator as far as the core is
// concerned; only the resulting Token matters.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	payload, _ := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": c.RedirectURI,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/oauth/token", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.ClientID + ":" + c.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", fault.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("token exchange: status %d: %w",
			resp.StatusCode, fault.ErrUpstreamUnavailable)
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("token exchange: %w", fault.ErrMalformedUpstreamResponse)
	}
	return &tok, nil
}

/*────────────────────────────── helpers ───────────────────────────────────*/

var databaseIDPattern = regexp.MustCompile(`(?i)[a-f0-9]{32}`)

// ExtractDatabaseID pulls the 32-hex database id out of a pasted Notion
// URL (or accepts a bare id).  Returns "" when no id is present.
func ExtractDatabaseID(raw string) string {
	return databaseIDPattern.FindString(raw)
}
