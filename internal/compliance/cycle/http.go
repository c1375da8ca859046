package cycle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

const defaultRequestTimeout = 2 * time.Second

// HTTPResolver fetches cycle windows from the election calendar service.
// Lookups for the same candidate are deduplicated with singleflight and the
// fetched window is cached in Redis when a client is configured, since
// election dates change on the order of months, not requests.
type HTTPResolver struct {
	baseURL  string
	client   *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
}

// HTTPOption configures the HTTPResolver.
type HTTPOption func(*HTTPResolver)

// WithCache enables Redis caching of cycle windows.
func WithCache(client *redis.Client, ttl time.Duration) HTTPOption {
	return func(r *HTTPResolver) {
		r.cache = client
		r.cacheTTL = ttl
	}
}

// WithTimeout bounds each calendar service request.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(r *HTTPResolver) {
		r.client.Timeout = timeout
	}
}

// NewHTTP builds a resolver against the election calendar service at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTPResolver, error) {
	if baseURL == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "election calendar base URL is required")
	}
	r := &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *HTTPResolver) InCurrentCycle(ctx context.Context, candidateID domain.RecipientID, state string, ts time.Time) (bool, error) {
	w, err := r.window(ctx, candidateID, state)
	if err != nil {
		return false, err
	}
	return w.Contains(ts), nil
}

func (r *HTTPResolver) window(ctx context.Context, candidateID domain.RecipientID, state string) (Window, error) {
	key := fmt.Sprintf("cycle:%s:%s", candidateID, state)

	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, key).Bytes(); err == nil {
			var w Window
			if err := json.Unmarshal(raw, &w); err == nil {
				return w, nil
			}
			// Corrupt cache entries are dropped and refetched.
			r.cache.Del(ctx, key)
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.fetch(ctx, candidateID, state)
	})
	if err != nil {
		return Window{}, err
	}
	w := v.(Window)

	if r.cache != nil {
		if raw, err := json.Marshal(w); err == nil {
			r.cache.Set(ctx, key, raw, r.cacheTTL)
		}
	}
	return w, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, candidateID domain.RecipientID, state string) (Window, error) {
	u := fmt.Sprintf("%s/candidates/%s/current-cycle", r.baseURL, url.PathEscape(string(candidateID)))
	if state != "" {
		u += "?state=" + url.QueryEscape(state)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Window{}, dErrors.Wrap(err, dErrors.CodeInternal, "build election calendar request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Window{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "election calendar unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Window{}, dErrors.Newf(dErrors.CodeUnavailable, "election calendar returned %d", resp.StatusCode)
	}

	var w Window
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return Window{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "decode election calendar response")
	}
	return w, nil
}
