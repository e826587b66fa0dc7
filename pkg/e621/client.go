package e621

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biscuitvixen/e6-dl/pkg/config"
	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/ratelimit"
	"github.com/biscuitvixen/e6-dl/pkg/retry"
)

const defaultMediaTimeout = 2 * time.Minute

// Client talks to the e621 JSON API and its static file hosts
type Client struct {
	httpClient  *http.Client
	mediaClient *http.Client
	baseURL     string
	userAgent   string
	username    string
	apiKey      string
	limiter     ratelimit.Limiter
	retry       *retry.Config
	logger      logger.Logger
}

// NewClient creates a client from the API section of the configuration.
// A nil limiter paces requests at one per second; a nil retry config uses
// retry.DefaultConfig.
func NewClient(cfg config.APIConfig, limiter ratelimit.Limiter, retryCfg *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if limiter == nil {
		limiter = ratelimit.Every(time.Second)
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		withLogger := *retryCfg
		withLogger.Logger = log
		retryCfg = &withLogger
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		mediaClient: &http.Client{Timeout: defaultMediaTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		userAgent:   cfg.UserAgent,
		username:    cfg.Username,
		apiKey:      cfg.APIKey,
		limiter:     limiter,
		retry:       retryCfg,
		logger:      log,
	}
}

// SetCredentials sets the username and API key sent as basic auth
func (c *Client) SetCredentials(username, apiKey string) {
	c.username = username
	c.apiKey = apiKey
}

// BaseURL returns the site root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHTTPClient replaces the HTTP client used for API and media requests
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
	c.mediaClient = httpClient
}

// SetMediaTimeout bounds a whole media download, body included
func (c *Client) SetMediaTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	media := *c.mediaClient
	media.Timeout = timeout
	c.mediaClient = &media
}

// doRequest waits for the rate limiter and performs a single GET request.
// Non-200 responses are closed and turned into typed errors.
func (c *Client) doRequest(ctx context.Context, hc *http.Client, rawURL string) (*http.Response, error) {
	if wait := c.limiter.Delay(); wait > 0 {
		logger.LogRateLimit(c.logger, rawURL, wait)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request for %s", rawURL)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" && c.apiKey != "" && c.sameHost(req.URL) {
		req.SetBasicAuth(c.username, c.apiKey)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Network(err, "GET %s", rawURL)
	}

	logger.LogRequest(c.logger, req.Method, rawURL, resp.StatusCode, duration)

	if err := checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// get performs a GET request through the retry policy
func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string) (*http.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*http.Response, error) {
		return c.doRequest(ctx, hc, rawURL)
	}, c.retry)
}

// getJSON performs a GET request and decodes the JSON response into target
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	resp, err := c.get(ctx, c.httpClient, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Network(err, "failed to read response body of %s", rawURL)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse JSON from %s", rawURL)
	}
	return nil
}

func (c *Client) sameHost(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Host, u.Host)
}

// checkResponseStatus maps the HTTP status to a typed error
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	errType := errs.FromStatusCode(resp.StatusCode)
	var message string
	switch errType {
	case errs.ErrorTypeAuth:
		message = "authentication failed, check username and API key"
	case errs.ErrorTypeNotFound:
		message = "resource not found"
	case errs.ErrorTypeRateLimit:
		message = "rate limit exceeded"
	case errs.ErrorTypeServerError:
		message = "server error"
	default:
		message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.Request != nil {
		message += ": " + resp.Request.URL.String()
	}

	return &errs.Error{
		Type:       errType,
		Message:    message,
		Code:       resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// GetPool fetches a pool without resolving its artist
func (c *Client) GetPool(ctx context.Context, poolID int) (*Pool, error) {
	var raw apiPool
	if err := c.getJSON(ctx, endpointURL(c.baseURL, PoolEndpoint, poolID), &raw); err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NotFound("pool %d does not exist", poolID)
		}
		return nil, err
	}
	return raw.toPool(), nil
}

// GetPost fetches a single post; its Page is left at zero
func (c *Client) GetPost(ctx context.Context, postID int) (*Post, error) {
	var envelope apiPostEnvelope
	if err := c.getJSON(ctx, endpointURL(c.baseURL, PostEndpoint, postID), &envelope); err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NotFound("post %d does not exist", postID)
		}
		return nil, err
	}
	if envelope.Post == nil {
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("post %d: response has no post object", postID))
	}
	return envelope.Post.toPost(0), nil
}

// ResolvePost fetches the post a ref points at, keeping the ref's page
func (c *Client) ResolvePost(ctx context.Context, ref PostRef) (*Post, error) {
	post, err := c.GetPost(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	post.Page = ref.Page
	return post, nil
}

// ResolvePool fetches a pool by ID or URL and determines its artist from
// the first post
func (c *Client) ResolvePool(ctx context.Context, idOrURL string) (*Pool, error) {
	poolID, err := ParsePoolID(idOrURL)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithField("pool_id", poolID)
	log.Debug("Resolving pool")

	pool, err := c.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if len(pool.Posts) == 0 {
		return nil, errs.NotFound("pool %d has no posts", poolID)
	}

	first, err := c.GetPost(ctx, pool.Posts[0].ID)
	if err != nil {
		return nil, fmt.Errorf("resolving artist of pool %d: %w", poolID, err)
	}
	pool.Artist = SelectArtist(first.Artists)

	log.InfoWithFields("Resolved pool", map[string]interface{}{
		"name":   pool.Name,
		"artist": pool.Artist,
		"posts":  len(pool.Posts),
	})
	return pool, nil
}

// FetchPostMedia opens the post's file for streaming. The caller closes it.
func (c *Client) FetchPostMedia(ctx context.Context, post *Post) (io.ReadCloser, error) {
	if post.Deleted {
		return nil, errs.NotFound("post %d is deleted", post.ID)
	}
	if post.FileURL == "" {
		return nil, errs.NotFound("post %d has no file URL", post.ID)
	}

	resp, err := c.get(ctx, c.mediaClient, post.FileURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
