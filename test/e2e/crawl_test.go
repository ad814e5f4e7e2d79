//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"tft-analyzer/internal/collector"
	"tft-analyzer/internal/config"
	"tft-analyzer/internal/db"
	"tft-analyzer/internal/ingest"
	"tft-analyzer/internal/itemstats"
	"tft-analyzer/internal/loadout"
	"tft-analyzer/internal/patch"
	"tft-analyzer/internal/riot"
	"tft-analyzer/internal/storage"
)

const testKey = "RGAPI-e2e"

// fakeRiot serves the ladder, match history and match endpoints over HTTP.
type fakeRiot struct {
	mu      sync.Mutex
	history map[string][]string
	fetches map[string]int
	// rejectAfter makes every request after that many match fetches return 401.
	rejectAfter int
	// abort is consulted before each match fetch with the number already
	// served; returning true fails the request without serving it.
	abort func(served int) bool
}

func newFakeRiot() *fakeRiot {
	return &fakeRiot{
		history: map[string][]string{
			"p1": {"NA1_1", "NA1_2", "NA1_3"},
			"p2": {"NA1_3", "NA1_4", "NA1_5", "NA1_6"},
		},
		fetches: map[string]int{},
	}
}

func (f *fakeRiot) totalFetches() int {
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	return n
}

func (f *fakeRiot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("X-Riot-Token") != testKey || (f.rejectAfter > 0 && f.totalFetches() >= f.rejectAfter) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/tft/league/v1/challenger":
		writeJSON(w, riot.LeagueList{Tier: "CHALLENGER", Entries: []riot.LeagueEntry{{PUUID: "p1"}, {PUUID: "p2"}}})

	case strings.HasPrefix(path, "/tft/match/v1/matches/by-puuid/"):
		puuid := strings.TrimSuffix(strings.TrimPrefix(path, "/tft/match/v1/matches/by-puuid/"), "/ids")
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		all := f.history[puuid]
		page := []string{}
		if start < len(all) {
			end := start + count
			if end > len(all) {
				end = len(all)
			}
			page = all[start:end]
		}
		writeJSON(w, page)

	case strings.HasPrefix(path, "/tft/match/v1/matches/"):
		id := strings.TrimPrefix(path, "/tft/match/v1/matches/")
		if f.abort != nil && f.abort(f.totalFetches()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f.fetches[id]++
		fmt.Fprintf(w, `{"metadata":{"match_id":%q},"info":{"game_datetime":1770500000000,"game_version":"Version 16.4.1","participants":[
			{"puuid":"a-%[1]s","placement":2,"units":[{"character_id":"TFT16_Jinx","tier":2,"itemNames":["TFT_Item_InfinityEdge","TFT_Item_LastWhisper"]}]},
			{"puuid":"b-%[1]s","placement":6,"units":[{"character_id":"TFT16_Jinx","tier":1,"itemNames":["TFT_Item_InfinityEdge"]}]}
		]}}`, id)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type env struct {
	cfg    config.Config
	server *httptest.Server
	riot   *fakeRiot
}

func newEnv(t *testing.T, target int) *env {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	cfg.Riot.APIKey = testKey
	cfg.Paths.RawDir = filepath.Join(dir, "raw")
	cfg.Paths.SeenFile = filepath.Join(dir, "seen.json")
	cfg.Paths.StateFile = filepath.Join(dir, "state.json")
	cfg.Paths.DB = filepath.Join(dir, "tft.db")
	cfg.Crawl.TargetMatches = target
	cfg.Crawl.PageSize = 2
	cfg.Crawl.PagesPerSeed = 2
	cfg.Crawl.ShuffleSeed = 1
	cfg.Crawl.RequestInterval = 0
	cfg.Crawl.TierPause = 0
	cfg.Crawl.LadderTiers = []string{"challenger"}

	fr := newFakeRiot()
	server := httptest.NewServer(fr)
	t.Cleanup(server.Close)
	return &env{cfg: cfg, server: server, riot: fr}
}

func (e *env) crawl(t *testing.T, ctx context.Context) (collector.Summary, error) {
	t.Helper()
	noWait := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	client, err := riot.NewClient(e.cfg.Riot,
		riot.WithHosts(e.server.URL, e.server.URL),
		riot.WithSleep(noWait),
		riot.WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := storage.NewRawStore(e.cfg.Paths.RawDir)
	if err != nil {
		t.Fatal(err)
	}
	c := collector.NewCrawler(client, raw, patch.NewBucketer(e.cfg.Patches), e.cfg,
		collector.WithSleep(noWait),
		collector.WithLogger(zaptest.NewLogger(t)))
	return c.Run(ctx)
}

func (e *env) reduce(t *testing.T) (*db.Store, *itemstats.Result) {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(ctx, e.cfg.Paths.DB)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	raw, err := storage.NewRawStore(e.cfg.Paths.RawDir)
	if err != nil {
		t.Fatal(err)
	}
	normalizer := ingest.NewNormalizer(patch.NewBucketer(e.cfg.Patches))
	sum, err := ingest.NewIngester(raw, store, normalizer, zaptest.NewLogger(t)).Run(ctx)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if sum.Skipped != 0 {
		t.Errorf("ingest skipped %d records", sum.Skipped)
	}

	res, err := itemstats.NewReducer(store, store, loadout.NewComponentSet(e.cfg.Items.Components),
		e.cfg.Stats.TopHalfCutoff, zaptest.NewLogger(t)).Run(ctx)
	if err != nil {
		t.Fatalf("reduce error = %v", err)
	}
	return store, res
}

func TestE2E_HappyPath(t *testing.T) {
	e := newEnv(t, 5)

	sum, err := e.crawl(t, context.Background())
	if err != nil {
		t.Fatalf("crawl error = %v", err)
	}
	if sum.Seen != 5 || sum.Fetched != 5 {
		t.Errorf("summary = %+v, want 5 seen and fetched", sum)
	}
	for id, n := range e.riot.fetches {
		if n != 1 {
			t.Errorf("match %s fetched %d times", id, n)
		}
	}

	store, res := e.reduce(t)
	counts, err := store.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts.Matches != 5 || counts.Participants != 10 {
		t.Errorf("counts = %+v, want 5 matches and 10 participants", counts)
	}

	jinx := itemstats.ChampionKey{PatchBucket: "TFT16.4", ChampionID: "TFT16_Jinx"}
	if b := res.Baselines[jinx]; b.Games != 10 || b.AvgPlace() != 4.0 {
		t.Errorf("baseline = %+v, want 10 games at 4.0", b)
	}

	pairs, err := store.CombinationStats(context.Background(), 2, db.StatsFilter{ChampionID: "TFT16_Jinx"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0].Games != 5 || pairs[0].Delta != -2.0 || pairs[0].Top4Rate != 1.0 {
		t.Errorf("k=2 stats = %+v, want one pair over 5 games with delta -2", pairs)
	}
}

func TestE2E_ResumeAfterShutdown(t *testing.T) {
	e := newEnv(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	e.riot.abort = func(served int) bool {
		if served == 2 {
			cancel()
			return true
		}
		return false
	}
	_, err := e.crawl(t, ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("first crawl error = %v, want context.Canceled", err)
	}

	e.riot.abort = nil
	sum, err := e.crawl(t, context.Background())
	if err != nil {
		t.Fatalf("resumed crawl error = %v", err)
	}
	if sum.Seen != 5 {
		t.Errorf("seen = %d, want 5", sum.Seen)
	}
	for id, n := range e.riot.fetches {
		if n != 1 {
			t.Errorf("match %s fetched %d times across restarts", id, n)
		}
	}
}

func TestE2E_KeyExpiryStopsAndResumes(t *testing.T) {
	e := newEnv(t, 5)
	e.riot.rejectAfter = 3

	_, err := e.crawl(t, context.Background())
	if !errors.Is(err, riot.ErrUnauthorized) {
		t.Fatalf("crawl error = %v, want ErrUnauthorized", err)
	}

	st, err := storage.LoadCrawlState(e.cfg.Paths.StateFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Seeds) == 0 {
		t.Error("state should keep the seed list across a key expiry")
	}

	e.riot.mu.Lock()
	e.riot.rejectAfter = 0
	e.riot.mu.Unlock()

	sum, err := e.crawl(t, context.Background())
	if err != nil {
		t.Fatalf("crawl after key renewal error = %v", err)
	}
	if sum.Seen != 5 || sum.Fetched != 2 {
		t.Errorf("summary = %+v, want 5 seen with 2 new fetches", sum)
	}
}
