// Package discord posts crawl notifications to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"tft-analyzer/internal/logging"
)

const (
	colorRed    = 15158332 // 0xE74C3C
	colorGreen  = 5763719  // 0x57F287
	colorYellow = 16705372 // 0xFEE75C

	defaultWebhookTimeout = 10 * time.Second
	maxRetries            = 3
)

// WebhookPayload is the body of a webhook execution.
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// CrawlReport is the subset of a crawl summary shown in notifications.
type CrawlReport struct {
	Fetched        int
	Recovered      int
	SkippedMatches int
	Seen           int
	Target         int
	Runtime        time.Duration
}

// NewCrawlCompletedPayload builds the notification for a crawl that reached its target.
func NewCrawlCompletedPayload(r CrawlReport) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{{
			Title:  "✅ Crawl Completed",
			Color:  colorGreen,
			Fields: reportFields(r),
			Footer: &EmbedFooter{Text: "Run ingest and reduce to refresh the stats tables"},
		}},
	}
}

// NewCrawlStoppedPayload builds the notification for a crawl that stopped
// before its target. keyExpired selects the urgent variant with a mention.
func NewCrawlStoppedPayload(r CrawlReport, reason string, keyExpired bool) WebhookPayload {
	p := WebhookPayload{
		Embeds: []Embed{{
			Title:       "⏸️ Crawl Stopped",
			Description: reason,
			Color:       colorYellow,
			Fields:      reportFields(r),
			Footer:      &EmbedFooter{Text: "Progress is saved; the next run resumes from the same seed and page"},
		}},
	}
	if keyExpired {
		p.Content = "@here API Key Expired!"
		p.Embeds[0].Title = "🔑 API Key Expired"
		p.Embeds[0].Color = colorRed
		p.Embeds[0].Footer.Text = "Set a new RIOT_API_KEY and rerun collect to resume"
	}
	return p
}

func reportFields(r CrawlReport) []EmbedField {
	return []EmbedField{
		{Name: "Matches Fetched", Value: formatNumber(r.Fetched), Inline: true},
		{Name: "Seen", Value: formatNumber(r.Seen) + " / " + formatNumber(r.Target), Inline: true},
		{Name: "Runtime", Value: formatDuration(r.Runtime), Inline: true},
		{Name: "Recovered", Value: formatNumber(r.Recovered), Inline: true},
		{Name: "Skipped", Value: formatNumber(r.SkippedMatches), Inline: true},
	}
}

// Notifier is what the collect command needs from a webhook client.
type Notifier interface {
	CrawlCompleted(ctx context.Context, r CrawlReport) error
	CrawlStopped(ctx context.Context, r CrawlReport, reason string, keyExpired bool) error
}

// WebhookClient sends notifications to a Discord webhook.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWebhookClient(webhookURL string, logger *zap.Logger) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: defaultWebhookTimeout},
		logger:     logging.OrNop(logger).Named("discord"),
	}
}

func (c *WebhookClient) CrawlCompleted(ctx context.Context, r CrawlReport) error {
	return c.send(ctx, NewCrawlCompletedPayload(r))
}

func (c *WebhookClient) CrawlStopped(ctx context.Context, r CrawlReport, reason string, keyExpired bool) error {
	return c.send(ctx, NewCrawlStoppedPayload(r, reason, keyExpired))
}

// send posts the payload, honouring Retry-After on 429.
func (c *WebhookClient) send(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, "webhook request")
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Second
			if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				wait = time.Duration(s) * time.Second
			}
			c.logger.Debug("webhook rate limited", zap.Duration("retry_after", wait), zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return errors.Newf("webhook request failed with status %d", resp.StatusCode)
	}

	return errors.Newf("webhook request failed after %d retries", maxRetries)
}

// formatNumber inserts thousands separators (47832 -> "47,832").
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatDuration renders "Xh Ym".
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
