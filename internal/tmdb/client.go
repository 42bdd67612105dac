package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "en-US"

	defaultRateLimit = 40
	defaultRateBurst = 20
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL  string
	APIKey   string
	Language string
	// Timeout bounds a whole request. Zero leaves the platform default (none).
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to the TMDb v3 API.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewClient validates the base URL and constructs a client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not an absolute http(s) url", base)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConnsPerHost:   4,
			},
		}
	}

	return &Client{
		baseURL:  base,
		apiKey:   opts.APIKey,
		language: language,
		client:   httpClient,
		limiter:  rate.NewLimiter(rate.Limit(limit), burst),
		logger:   logger,
	}, nil
}

// Param is a single query parameter. Value may be a string, an integer, a
// float, a bool, a pointer to one of those, or nil.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter list.
type Params []Param

// BuildURL returns base+path with api_key first and every non-empty parameter
// after it, in order. Empty strings and nil values are skipped; a repeated key
// keeps its first position and its last value.
func (c *Client) BuildURL(path string, params Params) string {
	keys := []string{"api_key"}
	values := map[string]string{"api_key": c.apiKey}
	for _, p := range params {
		v, ok := formatValue(p.Value)
		if !ok {
			continue
		}
		if _, seen := values[p.Key]; !seen {
			keys = append(keys, p.Key)
		}
		values[p.Key] = v
	}

	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(path)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values[k]))
	}
	return b.String()
}

func formatValue(v any) (string, bool) {
	// Pointers stand for their target; a nil pointer is an absent value.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		if st, ok := v.(fmt.Stringer); ok {
			s := st.String()
			return s, s != ""
		}
		return formatValue(rv.Elem().Interface())
	}

	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case fmt.Stringer:
		s := val.String()
		return s, s != ""
	default:
		s := fmt.Sprint(val)
		return s, s != ""
	}
}

// getJSON performs a GET and returns the raw JSON body on a 2xx response.
func (c *Client) getJSON(ctx context.Context, op, rawURL string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", stripURL(err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: stripURL(err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("tmdb request",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, newRequestFailed(resp.StatusCode)
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Op: op, Err: ctx.Err()}
		}
		return nil, fmt.Errorf("decode tmdb response: %w", err)
	}
	return body, nil
}

// stripURL drops the *url.Error wrapper, whose message embeds the api_key.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
