package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tft-analyzer/internal/collector"
	"tft-analyzer/internal/discord"
	"tft-analyzer/internal/export"
	"tft-analyzer/internal/patch"
	"tft-analyzer/internal/riot"
	"tft-analyzer/internal/storage"
)

const notifyTimeout = 30 * time.Second

type collectOptions struct {
	riotIDs      []string
	puuids       []string
	target       int
	skipKeyCheck bool
}

func (o *collectOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.riotIDs, "riot-id", nil, "seed player as GameName#TagLine, crawled before the ladder sample")
	cmd.Flags().StringSliceVar(&o.puuids, "puuid", nil, "seed player PUUID, crawled before the ladder sample")
	cmd.Flags().IntVar(&o.target, "target", 0, "distinct matches to collect (overrides crawl.target_matches)")
	cmd.Flags().BoolVar(&o.skipKeyCheck, "skip-key-check", false, "skip the API key check before crawling")
}

func newCollectCmd(s *session) *cobra.Command {
	var opts collectOptions
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Crawl ranked match histories until the target number of matches is stored.",
		Long: `Samples the challenger, grandmaster and master ladders for seed players and
downloads every unseen match in their histories. Progress is saved after each
request; rerunning resumes where the last run stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runCollect(cmd.Context(), s, opts)
			return err
		},
	}
	opts.bind(cmd)
	return cmd
}

func runCollect(ctx context.Context, s *session, opts collectOptions) (collector.Summary, error) {
	cfg := s.cfg
	if opts.target > 0 {
		cfg.Crawl.TargetMatches = opts.target
	}
	if cfg.Riot.APIKey == "" {
		return collector.Summary{}, errors.New("RIOT_API_KEY is not set")
	}

	if !opts.skipKeyCheck {
		if err := checkKey(ctx, s, cfg.Riot.APIKey); err != nil {
			return collector.Summary{}, err
		}
	}

	client, err := riot.NewClient(cfg.Riot, riot.WithLogger(s.logger))
	if err != nil {
		return collector.Summary{}, err
	}
	raw, err := storage.NewRawStore(cfg.Paths.RawDir)
	if err != nil {
		return collector.Summary{}, err
	}

	pinned := append([]string(nil), opts.puuids...)
	for _, id := range opts.riotIDs {
		name, tag, err := parseRiotID(id)
		if err != nil {
			return collector.Summary{}, err
		}
		account, err := client.GetAccountByRiotID(ctx, name, tag)
		if err != nil {
			return collector.Summary{}, errors.Wrapf(err, "look up %s", id)
		}
		s.logger.Info("resolved seed player", zap.String("riot_id", id), zap.String("puuid", account.PUUID))
		pinned = append(pinned, account.PUUID)
	}

	crawler := collector.NewCrawler(client, raw, patch.NewBucketer(cfg.Patches), cfg,
		collector.WithPinnedSeeds(pinned...),
		collector.WithLogger(s.logger))

	sum, err := crawler.Run(ctx)
	printCollectSummary(s, sum)
	notifyCrawl(ctx, s, sum, err)
	return sum, err
}

// checkKey rejects a key the status endpoint refuses. Network trouble is
// logged and the crawl proceeds.
func checkKey(ctx context.Context, s *session, key string) error {
	v := riot.NewKeyValidator(s.cfg.Riot, riot.WithValidatorLogger(s.logger))
	ok, err := v.ValidateKey(ctx, key)
	if err != nil {
		s.logger.Warn("could not validate API key, continuing", zap.Error(err))
		return nil
	}
	if !ok {
		return errors.Wrap(riot.ErrUnauthorized, "API key rejected")
	}
	return nil
}

// parseRiotID splits "GameName#TagLine" at the last '#'.
func parseRiotID(id string) (string, string, error) {
	i := strings.LastIndex(id, "#")
	if i <= 0 || i == len(id)-1 {
		return "", "", errors.Newf("invalid Riot ID %q, expected GameName#TagLine", id)
	}
	return strings.TrimSpace(id[:i]), strings.TrimSpace(id[i+1:]), nil
}

func printCollectSummary(s *session, sum collector.Summary) {
	export.RenderSummary(s.out, "Collect Summary", []export.KV{
		{Key: "Fetched", Value: sum.Fetched},
		{Key: "Recovered from disk", Value: sum.Recovered},
		{Key: "Skipped matches", Value: sum.SkippedMatches},
		{Key: "Skipped pages", Value: sum.SkippedPages},
		{Key: "Seed refreshes", Value: sum.SeedRefreshes},
		{Key: "Seen / target", Value: fmt.Sprintf("%d / %d", sum.Seen, sum.Target)},
		{Key: "Elapsed", Value: sum.Elapsed.Round(time.Second).String()},
	})
}

// notifyCrawl posts the outcome to Discord when a webhook is configured.
func notifyCrawl(ctx context.Context, s *session, sum collector.Summary, runErr error) {
	url := s.cfg.Publish.DiscordWebhookURL
	if url == "" {
		return
	}
	sendNotification(ctx, s, discord.NewWebhookClient(url, s.logger), sum, runErr)
}

func sendNotification(ctx context.Context, s *session, n discord.Notifier, sum collector.Summary, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	report := discord.CrawlReport{
		Fetched:        sum.Fetched,
		Recovered:      sum.Recovered,
		SkippedMatches: sum.SkippedMatches,
		Seen:           sum.Seen,
		Target:         sum.Target,
		Runtime:        sum.Elapsed,
	}

	var err error
	if runErr == nil {
		err = n.CrawlCompleted(ctx, report)
	} else {
		err = n.CrawlStopped(ctx, report, runErr.Error(), errors.Is(runErr, riot.ErrUnauthorized))
	}
	if err != nil {
		s.logger.Warn("failed to send Discord notification", zap.Error(err))
	}
}
