// Package collector harvests ranked TFT match details from the Riot API into
// the raw record store. The crawl is resumable: its position and the set of
// fetched match ids are persisted after every unit of work.
package collector

import (
	"context"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"tft-analyzer/internal/config"
	"tft-analyzer/internal/logging"
	"tft-analyzer/internal/patch"
	"tft-analyzer/internal/riot"
	"tft-analyzer/internal/storage"
)

const progressEvery = 50

// ErrSeedsUnavailable is returned when the ladder sample yields no players.
var ErrSeedsUnavailable = errors.New("no seed players available")

// API is the subset of the Riot client the crawler uses.
type API interface {
	GetLeague(ctx context.Context, tier string) (*riot.LeagueList, error)
	GetSummoner(ctx context.Context, summonerID string) (*riot.Summoner, error)
	GetMatchIDs(ctx context.Context, puuid string, start, count int) ([]string, error)
	GetMatchRaw(ctx context.Context, matchID string) ([]byte, error)
}

// Summary reports one crawl run.
type Summary struct {
	Fetched        int // match details downloaded
	Recovered      int // already on disk, added to the seen set without a request
	SkippedMatches int
	SkippedPages   int
	SeedRefreshes  int
	Seen           int
	Target         int
	Elapsed        time.Duration
}

// Crawler walks seed players' match histories and stores every unseen match.
type Crawler struct {
	api       API
	raw       *storage.RawStore
	bucketer  *patch.Bucketer
	cfg       config.CrawlConfig
	seenPath  string
	statePath string

	pinned []string
	sleep  riot.SleepFunc
	rng    *rand.Rand
	logger *zap.Logger

	sm    *StateMachine
	state storage.CrawlState
	seen  *storage.SeenSet
	page  []string
	sum   Summary
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithPinnedSeeds puts players ahead of every ladder sample.
func WithPinnedSeeds(puuids ...string) Option {
	return func(c *Crawler) {
		c.pinned = append(c.pinned, puuids...)
	}
}

// WithSleep replaces the cadence sleep (tests).
func WithSleep(sleep riot.SleepFunc) Option {
	return func(c *Crawler) {
		c.sleep = sleep
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

func NewCrawler(api API, raw *storage.RawStore, bucketer *patch.Bucketer, cfg config.Config, opts ...Option) *Crawler {
	seed := cfg.Crawl.ShuffleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &Crawler{
		api:       api,
		raw:       raw,
		bucketer:  bucketer,
		cfg:       cfg.Crawl,
		seenPath:  cfg.Paths.SeenFile,
		statePath: cfg.Paths.StateFile,
		sleep:     riot.Sleep,
		rng:       rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger).Named("collector")
	return c
}

// Run crawls until the seen set reaches the target. It returns ctx.Err()
// when interrupted; everything completed before that is already persisted.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	c.sum = Summary{Target: c.cfg.TargetMatches}

	err := c.run(ctx)

	c.sum.Elapsed = time.Since(start)
	if c.seen != nil {
		c.sum.Seen = c.seen.Len()
	}
	return c.sum, err
}

func (c *Crawler) run(ctx context.Context) error {
	if err := c.load(); err != nil {
		return err
	}
	c.logger.Info("resuming crawl",
		zap.Int("seen", c.seen.Len()),
		zap.Int("target", c.cfg.TargetMatches),
		zap.Int("seeds", len(c.state.Seeds)),
		zap.Int("puuid_idx", c.state.SeedIndex),
		zap.Int("page_start", c.state.PageStart))

	c.sm = NewStateMachine(StateSeeding)
	c.sm.OnTransition(func(from, to State) {
		c.logger.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	})
	if _, ok := c.state.CurrentSeed(); ok {
		if err := c.sm.TransitionTo(StatePaging); err != nil {
			return err
		}
	}

	for {
		if c.sm.Current() != StateDone && c.targetReached() {
			if err := c.sm.TransitionTo(StateDone); err != nil {
				return err
			}
		}
		if c.sm.Current() == StateDone {
			c.logger.Info("target reached", zap.Int("seen", c.seen.Len()))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch c.sm.Current() {
		case StateSeeding:
			err = c.seedStep(ctx)
		case StatePaging:
			err = c.pageStep(ctx)
		case StateFetching:
			err = c.fetchStep(ctx)
		case StateRotating:
			err = c.rotateStep()
		default:
			err = errors.Newf("crawler stuck in state %s", c.sm.Current())
		}
		if err != nil {
			return err
		}
	}
}

func (c *Crawler) load() error {
	seen, err := storage.LoadSeenSet(c.seenPath, uint(c.cfg.TargetMatches))
	if err != nil {
		return err
	}
	state, err := storage.LoadCrawlState(c.statePath)
	if err != nil {
		return err
	}
	c.seen = seen
	c.state = state
	return nil
}

func (c *Crawler) targetReached() bool {
	return c.seen.Len() >= c.cfg.TargetMatches
}

func (c *Crawler) saveState() error {
	return storage.SaveCrawlState(c.statePath, c.state)
}

// seedStep replaces the seed list with a fresh ladder sample.
func (c *Crawler) seedStep(ctx context.Context) error {
	seeds, err := c.sampleLadder(ctx)
	if err != nil {
		return err
	}

	c.state = storage.CrawlState{Seeds: seeds}
	if err := c.saveState(); err != nil {
		return err
	}
	c.sum.SeedRefreshes++
	c.logger.Info("seeded from ladder", zap.Int("seeds", len(seeds)))
	return c.sm.TransitionTo(StatePaging)
}

func (c *Crawler) sampleLadder(ctx context.Context) ([]string, error) {
	dedup := storage.NewSeenSet(1000)
	var sampled []string

	for i, tier := range c.cfg.LadderTiers {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.TierPause); err != nil {
				return nil, err
			}
		}

		league, err := c.api.GetLeague(ctx, tier)
		if err != nil {
			if isFatal(err) {
				return nil, errors.Wrapf(err, "failed to load %s ladder", tier)
			}
			c.logger.Warn("skipping ladder tier", zap.String("tier", tier), zap.Error(err))
			continue
		}
		c.logger.Info("loaded ladder", zap.String("tier", tier), zap.Int("entries", len(league.Entries)))

		for _, entry := range league.Entries {
			puuid, err := c.resolveEntry(ctx, entry)
			if err != nil {
				return nil, err
			}
			if puuid != "" && dedup.Add(puuid) {
				sampled = append(sampled, puuid)
			}
		}
	}

	c.rng.Shuffle(len(sampled), func(i, j int) { sampled[i], sampled[j] = sampled[j], sampled[i] })

	seeds := make([]string, 0, len(c.pinned)+len(sampled))
	pinned := storage.NewSeenSet(uint(len(c.pinned) + 1))
	for _, puuid := range c.pinned {
		if pinned.Add(puuid) {
			seeds = append(seeds, puuid)
		}
	}
	for _, puuid := range sampled {
		if !pinned.Contains(puuid) {
			seeds = append(seeds, puuid)
		}
	}

	if len(seeds) == 0 {
		return nil, ErrSeedsUnavailable
	}
	return seeds, nil
}

// resolveEntry returns the entry's PUUID, looking it up by summoner id for
// payloads that lack it. Unresolvable entries yield "".
func (c *Crawler) resolveEntry(ctx context.Context, entry riot.LeagueEntry) (string, error) {
	if entry.PUUID != "" {
		return entry.PUUID, nil
	}
	if entry.SummonerID == "" {
		return "", nil
	}
	summoner, err := c.api.GetSummoner(ctx, entry.SummonerID)
	if err != nil {
		if isFatal(err) {
			return "", errors.Wrap(err, "failed to resolve summoner")
		}
		c.logger.Warn("skipping ladder entry", zap.String("summoner_id", entry.SummonerID), zap.Error(err))
		return "", nil
	}
	return summoner.PUUID, nil
}

// pageStep lists the current page of the current seed.
func (c *Crawler) pageStep(ctx context.Context) error {
	puuid, ok := c.state.CurrentSeed()
	if !ok {
		return c.sm.TransitionTo(StateRotating)
	}

	ids, err := c.api.GetMatchIDs(ctx, puuid, c.state.PageStart, c.cfg.PageSize)
	if err != nil {
		if isFatal(err) {
			return errors.Wrapf(err, "failed to list matches for puuid_idx=%d", c.state.SeedIndex)
		}
		c.sum.SkippedPages++
		c.logger.Warn("skipping seed after page failure",
			zap.String("puuid", puuid),
			zap.Int("puuid_idx", c.state.SeedIndex),
			zap.Int("page_start", c.state.PageStart),
			zap.Error(err))
		return c.sm.TransitionTo(StateRotating)
	}

	if len(ids) == 0 {
		return c.sm.TransitionTo(StateRotating)
	}
	c.page = ids
	return c.sm.TransitionTo(StateFetching)
}

// fetchStep stores every unseen match of the listed page, then advances
// the page offset.
func (c *Crawler) fetchStep(ctx context.Context) error {
	for _, id := range c.page {
		if c.targetReached() {
			return c.sm.TransitionTo(StateDone)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.fetchMatch(ctx, id); err != nil {
			return err
		}
	}
	c.page = nil

	if c.state.PageStart+c.cfg.PageSize >= c.cfg.PageSize*c.cfg.PagesPerSeed {
		return c.sm.TransitionTo(StateRotating)
	}
	c.state.PageStart += c.cfg.PageSize
	if err := c.saveState(); err != nil {
		return err
	}
	return c.sm.TransitionTo(StatePaging)
}

func (c *Crawler) fetchMatch(ctx context.Context, id string) error {
	onDisk, err := c.raw.Has(id)
	if err != nil {
		return err
	}
	if c.seen.Contains(id) && onDisk {
		return nil
	}
	if onDisk {
		c.seen.Add(id)
		c.sum.Recovered++
		return c.seen.Save(c.seenPath)
	}

	body, err := c.api.GetMatchRaw(ctx, id)
	if err != nil {
		if isFatal(err) {
			return errors.Wrapf(err, "failed to fetch match %s", id)
		}
		c.sum.SkippedMatches++
		c.logger.Warn("skipping match", zap.String("match_id", id), zap.Error(err))
		return nil
	}

	if err := c.raw.Write(id, body, c.derive(body)); err != nil {
		return err
	}
	c.seen.Add(id)
	if err := c.seen.Save(c.seenPath); err != nil {
		return err
	}
	if err := c.saveState(); err != nil {
		return err
	}
	c.sum.Fetched++

	if n := c.seen.Len(); n%progressEvery == 0 {
		c.logger.Info("progress", zap.Int("seen", n), zap.Int("target", c.cfg.TargetMatches), zap.String("latest", id))
	}
	return c.sleep(ctx, c.cfg.RequestInterval)
}

// derive computes the patch label and readable timestamp stored with the
// record. Fields that cannot be read are left empty.
func (c *Crawler) derive(body []byte) storage.Derived {
	var m riot.Match
	if err := json.Unmarshal(body, &m); err != nil || m.Info == nil {
		return storage.Derived{}
	}

	var d storage.Derived
	if label, ok := c.bucketer.Label(m.Info.GameDatetime, m.Info.GameVersion); ok {
		d.PatchBucket = label
	}
	if m.Info.GameDatetime != nil {
		d.GameDatetimeUTC = patch.FromMillis(*m.Info.GameDatetime).Format(patch.DatetimeLayout)
	}
	return d
}

// rotateStep moves to the next seed, or back to seeding when none are left.
func (c *Crawler) rotateStep() error {
	c.state.SeedIndex++
	c.state.PageStart = 0
	if err := c.saveState(); err != nil {
		return err
	}
	if _, ok := c.state.CurrentSeed(); !ok {
		return c.sm.TransitionTo(StateSeeding)
	}
	return c.sm.TransitionTo(StatePaging)
}

// isFatal reports errors that end the crawl: cancellation and rejected
// credentials. Other permanent upstream errors only skip work.
func isFatal(err error) bool {
	return errors.Is(err, riot.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
