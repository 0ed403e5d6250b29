package iss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/project-spencer/orbit/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// AltitudeSource returns the ISS altitude in meters at a given time.
type AltitudeSource interface {
	Altitude(ctx context.Context, t time.Time) (float64, error)
}

// FromConfig picks the altitude source: a TLE file when set, otherwise the
// HTTP lookup when enabled, otherwise the nominal altitude.
func FromConfig(cfg *config.Config, log logrus.FieldLogger) (AltitudeSource, error) {
	switch {
	case cfg.AltitudeTLE != "":
		t, err := LoadTLE(cfg.AltitudeTLE)
		if err != nil {
			return nil, fmt.Errorf("could not load %s: %w", cfg.AltitudeTLE, err)
		}
		log.WithField("norad", t.Catalog()).Info("altitude from tle")
		return t, nil
	case cfg.AltitudeLookup:
		log.WithField("url", cfg.AltitudeURL).Info("altitude from lookup")
		return NewClient(cfg.AltitudeURL, cfg.AltitudeRetries, cfg.AltitudeTimeout, log), nil
	}

	log.Debugf("nominal altitude %.0f m", cfg.AltitudeNominal)
	return Fixed(cfg.AltitudeNominal), nil
}

// Fixed always returns the same altitude.
type Fixed float64

func (f Fixed) Altitude(context.Context, time.Time) (float64, error) {
	return float64(f), nil
}

// Client asks a wheretheiss.at compatible endpoint for the position of the
// station at a unix timestamp.
type Client struct {
	endpoint string
	http     *retryablehttp.Client

	mu    sync.Mutex
	cache map[int64]float64
}

func NewClient(endpoint string, retries int, timeout time.Duration, log logrus.FieldLogger) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.HTTPClient.Timeout = timeout
	c.Logger = log

	return &Client{
		endpoint: endpoint,
		http:     c,
		cache:    make(map[int64]float64),
	}
}

func (c *Client) Altitude(ctx context.Context, t time.Time) (float64, error) {
	ts := t.Unix()

	c.mu.Lock()
	alt, ok := c.cache[ts]
	c.mu.Unlock()

	if ok {
		return alt, nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return 0, fmt.Errorf("invalid altitude endpoint: %w", err)
	}
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("altitude lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("altitude lookup: unexpected status code: %d", resp.StatusCode)
	}

	alt, err = ParseAltitude(body)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cache[ts] = alt
	c.mu.Unlock()

	return alt, nil
}

// ParseAltitude reads "altitude" and "units" from a position response and
// returns meters. Missing units mean kilometers.
func ParseAltitude(body []byte) (float64, error) {
	alt := gjson.GetBytes(body, "altitude")

	if alt.Type != gjson.Number {
		return 0, fmt.Errorf("altitude lookup: no altitude in response")
	}

	switch u := gjson.GetBytes(body, "units").String(); u {
	case "", "kilometers":
		return alt.Float() * 1000, nil
	case "miles":
		return alt.Float() * 1609.344, nil
	default:
		return 0, fmt.Errorf("altitude lookup: unknown units %q", u)
	}
}
