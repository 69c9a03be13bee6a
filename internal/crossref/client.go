// Package crossref looks up public conjunction data messages (CDMs) on
// Space-Track for maneuvered objects. A CDM naming the object shortly
// before a maneuver is the strongest sign the maneuver was collision
// avoidance. Lookups are enrichment only: without credentials the client
// is disabled and callers carry on.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Space-Track API root.
const DefaultBaseURL = "https://www.space-track.org"

// CDM is one conjunction data message involving the queried object as SAT1.
type CDM struct {
	TCA            string  `json:"tca"`
	PC             float64 `json:"pc"`
	MissDistanceKm float64 `json:"miss_distance_km"`
	Sat1Name       string  `json:"sat1_name"`
	Sat2Name       string  `json:"sat2_name"`
	Sat2NoradID    int     `json:"sat2_norad"`
}

// Config configures a Client. Zero values take the defaults noted.
type Config struct {
	BaseURL   string // DefaultBaseURL
	User      string
	Password  string
	Lookback  time.Duration // 7 days
	MinPc     float64
	BatchSize int           // 100
	Pacing    time.Duration // 2s, keeping under 30 requests per minute
}

// Client queries the cdm_public class in batches, caching per-ID results.
type Client struct {
	config     Config
	cache      Cache
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client. A nil cache uses a MemoryCache with DefaultTTL.
func NewClient(config Config, cache Cache, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Lookback <= 0 {
		config.Lookback = 7 * 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Pacing < 0 {
		config.Pacing = 0
	}
	if cache == nil {
		cache = NewMemoryCache(DefaultTTL)
	}
	// cookiejar.New only fails on a non-nil PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	return &Client{
		config: config,
		cache:  cache,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Jar:     jar,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.config.User != "" && c.config.Password != ""
}

// Lookup returns recent CDMs keyed by catalog ID. Cached IDs are served from
// the cache; the rest are queried in batches. IDs from a batch that failed
// are absent from the result and cached as empty so they are not retried
// until the entry expires. When login fails the cached subset is returned
// together with the login error. A disabled client returns an empty map
// without touching the cache or the network.
func (c *Client) Lookup(ctx context.Context, ids []int) (map[int][]CDM, error) {
	if !c.Enabled() {
		return map[int][]CDM{}, nil
	}

	results := make(map[int][]CDM, len(ids))
	var uncached []int
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := c.cache.Get(id); ok {
			results[id] = e.CDMs
			continue
		}
		uncached = append(uncached, id)
	}
	if len(uncached) == 0 {
		return results, nil
	}

	if err := c.login(ctx); err != nil {
		c.logger.Warn("space-track login failed", "error", err)
		return results, fmt.Errorf("space-track login: %w", err)
	}

	since := c.now().UTC().Add(-c.config.Lookback).Format("2006-01-02")
	size := c.config.BatchSize

	for start := 0; start < len(uncached); start += size {
		end := min(start+size, len(uncached))
		batch := uncached[start:end]

		found, err := c.query(ctx, batch, since)
		ts := c.now()
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			c.logger.Warn("space-track CDM query failed", "batch_size", len(batch), "error", err)
			for _, id := range batch {
				c.cache.Put(id, nil, ts)
			}
		} else {
			for _, id := range batch {
				cdms := found[id]
				if cdms == nil {
					cdms = []CDM{}
				}
				results[id] = cdms
				c.cache.Put(id, cdms, ts)
			}
		}

		if end < len(uncached) {
			if err := sleep(ctx, c.config.Pacing); err != nil {
				return results, err
			}
		}
	}

	if f, ok := c.cache.(Flusher); ok {
		if err := f.Flush(); err != nil {
			c.logger.Warn("persisting CDM cache failed", "error", err)
		}
	}

	c.logger.Info("CDM lookup complete",
		"requested", len(seen),
		"queried", len(uncached),
		"with_cdm", countNonEmpty(results),
	)
	return results, nil
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"identity": {c.config.User},
		"password": {c.config.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.BaseURL, "/")+"/ajaxauth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	// Bad credentials still answer 200 with a failure body.
	if strings.Contains(string(body), `"Failed"`) {
		return errors.New("credentials rejected")
	}
	return nil
}

// queryURL builds the cdm_public query for a batch of IDs.
func (c *Client) queryURL(batch []int, since string) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	ids := make([]string, len(batch))
	for i, id := range batch {
		ids[i] = strconv.Itoa(id)
	}
	u.Path = strings.TrimRight(u.Path, "/") +
		"/basicspacedata/query/class/cdm_public" +
		"/SAT1_NORAD_CAT_ID/" + strings.Join(ids, ",") +
		"/TCA/>" + since +
		"/orderby/TCA desc" +
		"/format/json"
	return u.String(), nil
}

func (c *Client) query(ctx context.Context, batch []int, since string) (map[int][]CDM, error) {
	target, err := c.queryURL(batch, since)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var raw []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding CDM response: %w", err)
	}

	wanted := make(map[int]bool, len(batch))
	for _, id := range batch {
		wanted[id] = true
	}

	out := make(map[int][]CDM)
	for _, r := range raw {
		id, cdm, ok := c.decodeCDM(r)
		if !ok || !wanted[id] {
			continue
		}
		out[id] = append(out[id], cdm)
	}
	return out, nil
}

// decodeCDM converts one raw record. Malformed records and those below the
// probability floor are rejected.
func (c *Client) decodeCDM(r map[string]any) (int, CDM, bool) {
	pc, err := number(r["PC"])
	if err != nil || pc < c.config.MinPc {
		return 0, CDM{}, false
	}
	sat1, err := number(r["SAT1_NORAD_CAT_ID"])
	if err != nil {
		return 0, CDM{}, false
	}
	miss, err := number(r["MISS_DISTANCE"])
	if err != nil {
		return 0, CDM{}, false
	}
	sat2, err := number(r["SAT2_NORAD_CAT_ID"])
	if err != nil {
		return 0, CDM{}, false
	}

	return int(sat1), CDM{
		TCA:            text(r["TCA"]),
		PC:             pc,
		MissDistanceKm: miss / 1000.0,
		Sat1Name:       text(r["SAT1_NAME"]),
		Sat2Name:       text(r["SAT2_NAME"]),
		Sat2NoradID:    int(sat2),
	}, true
}

// number reads a JSON value Space-Track may send as a string, a number or
// null. Missing and empty values are zero.
func number(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func countNonEmpty(m map[int][]CDM) int {
	n := 0
	for _, v := range m {
		if len(v) > 0 {
			n++
		}
	}
	return n
}
