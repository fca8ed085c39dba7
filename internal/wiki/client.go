// Package wiki is a thin client for the MediaWiki action API: log in with a
// bot password, read page text, save pages and post structured-discussion
// topics. Only the handful of calls this bot needs are implemented.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client talks to one wiki. It keeps the login session cookies and caches
// the CSRF token for the lifetime of the process.
type Client struct {
	apiURL   string
	username string
	password string

	http      *http.Client
	csrfToken string
}

// NewClient creates a client for the given action API endpoint. Login is
// separate so construction cannot fail on network problems.
func NewClient(apiURL, username, password string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		apiURL:   apiURL,
		username: username,
		password: password,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// apiError is the error envelope the action API returns on failure.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiResponse struct {
	Error *apiError       `json:"error"`
	Query json.RawMessage `json:"query"`
	Edit  json.RawMessage `json:"edit"`
	Login json.RawMessage `json:"login"`
	Flow  json.RawMessage `json:"flow"`
}

// Login authenticates with a bot password.
func (c *Client) Login(ctx context.Context) error {
	token, err := c.fetchToken(ctx, "login")
	if err != nil {
		return fmt.Errorf("failed to get login token: %w", err)
	}

	resp, err := c.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {c.username},
		"lgpassword": {c.password},
		"lgtoken":    {token},
	})
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	var login struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Login, &login); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if login.Result != "Success" {
		return fmt.Errorf("login rejected: %s (%s)", login.Result, login.Reason)
	}

	log.WithField("username", c.username).Info("Logged in to the wiki")
	return nil
}

// PageText returns the current wikitext of a page. A missing page is not an
// error; it reads as empty text, matching how a save would create it.
func (c *Client) PageText(ctx context.Context, title string) (string, error) {
	resp, err := c.get(ctx, url.Values{
		"action":        {"query"},
		"prop":          {"revisions"},
		"rvprop":        {"content"},
		"rvslots":       {"main"},
		"titles":        {title},
		"formatversion": {"2"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch page %q: %w", title, err)
	}

	var query struct {
		Pages []struct {
			Missing   bool `json:"missing"`
			Revisions []struct {
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(resp.Query, &query); err != nil {
		return "", fmt.Errorf("failed to decode page %q: %w", title, err)
	}
	if len(query.Pages) == 0 || query.Pages[0].Missing || len(query.Pages[0].Revisions) == 0 {
		return "", nil
	}
	return query.Pages[0].Revisions[0].Slots.Main.Content, nil
}

// SavePage replaces the full text of a page. Edits are never marked minor:
// every write of this bot is something watchlists should surface.
func (c *Client) SavePage(ctx context.Context, title, text, summary string) error {
	token, err := c.csrf(ctx)
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, url.Values{
		"action":        {"edit"},
		"title":         {title},
		"text":          {text},
		"summary":       {summary},
		"notminor":      {"1"},
		"bot":           {"1"},
		"token":         {token},
		"formatversion": {"2"},
	})
	if err != nil {
		return fmt.Errorf("failed to save page %q: %w", title, err)
	}

	var edit struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(resp.Edit, &edit); err != nil {
		return fmt.Errorf("failed to decode edit response for %q: %w", title, err)
	}
	if edit.Result != "Success" {
		return fmt.Errorf("edit of %q rejected: %s", title, edit.Result)
	}
	return nil
}

// IsFlowBoard reports whether a page uses the structured-discussions
// (Flow) content model. Talk pages on that model cannot be appended to as
// wikitext; new topics go through the flow API instead.
func (c *Client) IsFlowBoard(ctx context.Context, title string) (bool, error) {
	resp, err := c.get(ctx, url.Values{
		"action":        {"query"},
		"prop":          {"info"},
		"titles":        {title},
		"formatversion": {"2"},
	})
	if err != nil {
		return false, fmt.Errorf("failed to fetch info for %q: %w", title, err)
	}

	var query struct {
		Pages []struct {
			ContentModel string `json:"contentmodel"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(resp.Query, &query); err != nil {
		return false, fmt.Errorf("failed to decode info for %q: %w", title, err)
	}
	if len(query.Pages) == 0 {
		return false, nil
	}
	return query.Pages[0].ContentModel == "flow-board", nil
}

// NewFlowTopic opens a new topic on a structured-discussions board.
func (c *Client) NewFlowTopic(ctx context.Context, title, topic, content string) error {
	token, err := c.csrf(ctx)
	if err != nil {
		return err
	}

	_, err = c.post(ctx, url.Values{
		"action":     {"flow"},
		"submodule":  {"new-topic"},
		"page":       {title},
		"nttopic":    {topic},
		"ntcontent":  {content},
		"ntformat":   {"wikitext"},
		"token":      {token},
	})
	if err != nil {
		return fmt.Errorf("failed to post topic on %q: %w", title, err)
	}
	return nil
}

// csrf returns the cached CSRF token, fetching it on first use.
func (c *Client) csrf(ctx context.Context) (string, error) {
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}
	token, err := c.fetchToken(ctx, "csrf")
	if err != nil {
		return "", fmt.Errorf("failed to get csrf token: %w", err)
	}
	c.csrfToken = token
	return token, nil
}

func (c *Client) fetchToken(ctx context.Context, kind string) (string, error) {
	resp, err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {kind},
	})
	if err != nil {
		return "", err
	}

	var query struct {
		Tokens map[string]string `json:"tokens"`
	}
	if err := json.Unmarshal(resp.Query, &query); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	token := query.Tokens[kind+"token"]
	if token == "" {
		return "", fmt.Errorf("empty %s token in response", kind)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned HTTP %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read api response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode api response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)
	}
	return &resp, nil
}
