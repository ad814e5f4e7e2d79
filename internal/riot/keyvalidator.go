package riot

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tft-analyzer/internal/config"
)

const statusEndpoint = "/tft/status/v1/platform-data"

// ErrEmptyKey is returned when no key is configured.
var ErrEmptyKey = errors.New("riot: API key is empty")

// KeyValidator checks a key with one request to the TFT status endpoint,
// which every key tier may call.
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

type KeyValidatorOption func(*KeyValidator)

// WithBaseURL overrides the platform host (tests)
func WithBaseURL(url string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = url
	}
}

func WithTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

func WithValidatorLogger(logger *zap.Logger) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.logger = logger
	}
}

func NewKeyValidator(cfg config.RiotConfig, opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.PlatformHost,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.Named("keycheck")
	return v
}

// ValidateKey reports whether the platform accepts apiKey. The status is
// classified with the same table the client uses: 401/403 mean rejected,
// 200 accepted. Anything the client would retry leaves validity unknown and
// is returned as an error.
func (v *KeyValidator) ValidateKey(ctx context.Context, apiKey string) (bool, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return false, ErrEmptyKey
	}

	url := strings.TrimSuffix(v.baseURL, "/") + statusEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "key check request failed")
	}
	resp.Body.Close()

	d := RetryPolicy{}.Decide(resp.StatusCode, "", url)
	switch {
	case d.Action == ActionAccept:
		v.logger.Debug("key accepted", zap.String("key", MaskKey(apiKey)))
		return true, nil
	case d.Action == ActionFail && errors.Is(d.Err, ErrUnauthorized):
		v.logger.Debug("key rejected", zap.String("key", MaskKey(apiKey)), zap.Int("status", resp.StatusCode))
		return false, nil
	case d.Action == ActionFail:
		return false, errors.Wrap(d.Err, "key check")
	default:
		return false, errors.Wrap(&StatusError{StatusCode: resp.StatusCode, URL: url}, "key validity unknown")
	}
}

// MaskKey shortens a key for display ("RGAPI-...abcd").
func MaskKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}
