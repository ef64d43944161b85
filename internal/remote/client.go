package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aetherment-labs/aetherment/internal/branding"
	"github.com/aetherment-labs/aetherment/internal/manifest"
	"github.com/aetherment-labs/aetherment/internal/mod"
)

// ManifestFile is the manifest name looked up in repositories.
const ManifestFile = "meta.json"

// maxManifestSize bounds manifest responses.
const maxManifestSize = 1 << 20

// ErrRateLimited is returned when GitHub rejects requests with 403/429.
var ErrRateLimited = errors.New("GitHub rate limit exceeded. Set GITHUB_TOKEN for higher limits")

// Client fetches mods from GitHub repositories.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the raw content base URL.
func WithBaseURL(base string) Option {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets the token sent as Authorization header.
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

// New creates a Client. GITHUB_TOKEN is used when set.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(branding.RawContentURL(), "/"),
		token:      os.Getenv("GITHUB_TOKEN"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FileURL returns the URL of a file inside a mod's directory.
func (c *Client) FileURL(repo mod.RepoInfo, id, file string) string {
	return strings.Join([]string{
		c.baseURL,
		url.PathEscape(repo.Owner),
		url.PathEscape(repo.Name),
		url.PathEscape(repo.Branch),
		url.PathEscape(id),
		url.PathEscape(file),
	}, "/")
}

// GetMod looks up a mod in repo. It returns nil, nil when the repository has
// no such mod.
func (c *Client) GetMod(ctx context.Context, repo mod.RepoInfo, id string) (*mod.Mod, error) {
	if repo.Branch == "" {
		repo.Branch = mod.DefaultBranch
	}

	resp, err := c.get(ctx, c.FileURL(repo, id, ManifestFile))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("fetching %s from %s: %w", id, repo, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := manifest.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("manifest for %s in %s: %w", id, repo, err)
	}
	if m.ID != id {
		return nil, fmt.Errorf("manifest in %s declares id %q, expected %q", repo, m.ID, id)
	}

	out := m.ToMod()
	// The repository the mod was found in is its origin.
	out.Repo = repo
	return out, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", branding.CLIName()+"-client")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
