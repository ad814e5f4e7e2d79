package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"tft-analyzer/internal/config"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client is a rate-limited TFT Riot API client
type Client struct {
	apiKey       string
	platformHost string
	regionHost   string
	queueID      int
	httpClient   *http.Client
	policy       RetryPolicy
	sleep        SleepFunc
	logger       *zap.Logger

	// Rate limiting
	mu          sync.Mutex
	now         func() time.Time
	short       config.LimitWindow
	long        config.LimitWindow
	shortWindow []time.Time // requests inside short.Period
	longWindow  []time.Time // requests inside long.Period
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (useful for testing)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHosts overrides both API hosts (useful for testing)
func WithHosts(platform, region string) Option {
	return func(c *Client) {
		c.platformHost = platform
		c.regionHost = region
	}
}

// WithSleep replaces the wait used for backoff and rate limiting
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithClock replaces the clock used by the rate limiter
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Riot API client from cfg.
func NewClient(cfg config.RiotConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("RIOT_API_KEY environment variable not set")
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		platformHost: cfg.PlatformHost,
		regionHost:   cfg.RegionHost,
		queueID:      cfg.RankedQueueID,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		policy: RetryPolicy{
			RateLimitWait:   cfg.RateLimitWait,
			RetryAfterPad:   cfg.RetryAfterPad,
			ServerErrorWait: cfg.ServerErrorWait,
		},
		sleep:  Sleep,
		logger: zap.NewNop(),
		now:    time.Now,
		short:  cfg.ShortWindow,
		long:   cfg.LongWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("riot")
	return c, nil
}

// waitForRateLimit blocks until another request fits in both windows
func (c *Client) waitForRateLimit(ctx context.Context) error {
	for {
		c.mu.Lock()
		now := c.now()
		c.shortWindow = prune(c.shortWindow, now.Add(-c.short.Period))
		c.longWindow = prune(c.longWindow, now.Add(-c.long.Period))

		var wait time.Duration
		switch {
		case c.short.Requests > 0 && len(c.shortWindow) >= c.short.Requests:
			wait = c.shortWindow[0].Add(c.short.Period).Sub(now)
		case c.long.Requests > 0 && len(c.longWindow) >= c.long.Requests:
			wait = c.longWindow[0].Add(c.long.Period).Sub(now)
		default:
			c.shortWindow = append(c.shortWindow, now)
			c.longWindow = append(c.longWindow, now)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		c.logger.Debug("local rate limit reached", zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait+100*time.Millisecond); err != nil {
			return err
		}
	}
}

func prune(window []time.Time, cutoff time.Time) []time.Time {
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// doRequest issues a GET and applies the retry policy until the response is
// accepted or fails permanently. Transient failures are never returned.
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return nil, err
		}

		status, retryAfter, body, err := c.get(ctx, rawURL)
		var decision Decision
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			decision = c.policy.DecideTransport(err)
		} else {
			decision = c.policy.Decide(status, retryAfter, rawURL)
		}

		switch decision.Action {
		case ActionAccept:
			return body, nil
		case ActionFail:
			return nil, decision.Err
		}

		c.logger.Warn("transient API failure, retrying",
			zap.String("url", rawURL),
			zap.Int("status", status),
			zap.Int("attempt", attempt),
			zap.Duration("wait", decision.Wait),
			zap.NamedError("cause", decision.Err))
		if err := c.sleep(ctx, decision.Wait); err != nil {
			return nil, err
		}
	}
}

func (c *Client) get(ctx context.Context, rawURL string) (int, string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Retry-After"), body, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, result interface{}) error {
	body, err := c.doRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", rawURL)
	}
	return nil
}

// GetLeague fetches the apex ladder for tier (challenger, grandmaster or master)
func (c *Client) GetLeague(ctx context.Context, tier string) (*LeagueList, error) {
	u := fmt.Sprintf("%s/tft/league/v1/%s", c.platformHost, url.PathEscape(tier))

	var league LeagueList
	if err := c.getJSON(ctx, u, &league); err != nil {
		return nil, err
	}
	return &league, nil
}

// GetSummoner resolves an encrypted summoner id
func (c *Client) GetSummoner(ctx context.Context, summonerID string) (*Summoner, error) {
	u := fmt.Sprintf("%s/tft/summoner/v1/summoners/%s", c.platformHost, url.PathEscape(summonerID))

	var summoner Summoner
	if err := c.getJSON(ctx, u, &summoner); err != nil {
		return nil, err
	}
	return &summoner, nil
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*Account, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionHost, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account Account
	if err := c.getJSON(ctx, u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetMatchIDs lists a page of ranked match ids for a player
func (c *Client) GetMatchIDs(ctx context.Context, puuid string, start, count int) ([]string, error) {
	q := url.Values{}
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(count))
	if c.queueID > 0 {
		q.Set("queue", strconv.Itoa(c.queueID))
	}
	u := fmt.Sprintf("%s/tft/match/v1/matches/by-puuid/%s/ids?%s",
		c.regionHost, url.PathEscape(puuid), q.Encode())

	var matchIDs []string
	if err := c.getJSON(ctx, u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatchRaw fetches match details as the undecoded response body
func (c *Client) GetMatchRaw(ctx context.Context, matchID string) ([]byte, error) {
	u := fmt.Sprintf("%s/tft/match/v1/matches/%s", c.regionHost, url.PathEscape(matchID))
	return c.doRequest(ctx, u)
}
