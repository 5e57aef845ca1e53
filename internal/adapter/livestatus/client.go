// Package livestatus fetches real-time charger status from the public EV
// charger XML feed.
package livestatus

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/domain"
	"github.com/couchcryptid/ev-station-service/internal/observability"
)

// Options configures the feed request.
type Options struct {
	BaseURL        string
	ServiceKey     string
	PageSize       int
	Zone           string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client fetches per-charger status. Failures never reach the caller: every
// error path yields an empty LiveStatus, and the cache decides whether to keep
// an earlier snapshot.
type Client struct {
	opts       Options
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a live status client. The connect timeout bounds dialing;
// the read timeout bounds waiting for and reading the response.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchStatuses returns the current per-station charger statuses with a
// summary attached to each station's first charger.
func (c *Client) FetchStatuses(ctx context.Context) domain.LiveStatus {
	start := time.Now()
	items, err := c.fetch(ctx)
	c.metrics.LiveFeedDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.LiveFeedRequests.WithLabelValues(outcomeOf(err)).Inc()
		c.logger.Warn("live status fetch failed", "error", err)
		return domain.LiveStatus{}
	}

	live := buildLiveStatus(items)
	c.metrics.LiveFeedRequests.WithLabelValues("success").Inc()
	c.logger.Info("live status fetched", "chargers", len(items), "stations", len(live))
	return live
}

func (c *Client) fetch(ctx context.Context) ([]item, error) {
	params := url.Values{
		"serviceKey": {c.opts.ServiceKey},
		"pageNo":     {"1"},
		"numOfRows":  {strconv.Itoa(c.opts.PageSize)},
		"dataType":   {"XML"},
		"zcode":      {c.opts.Zone},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	items, err := decodeItems(resp.Body)
	if err != nil {
		return nil, &decodeError{err: err}
	}
	return items, nil
}

// item is one charger entry of the feed.
type item struct {
	StationID   string `xml:"statId"`
	ChargerID   string `xml:"chgerId"`
	ChargerType string `xml:"chgerType"`
	Stat        string `xml:"stat"`
}

// decodeItems collects every <item> element regardless of nesting depth.
func decodeItems(r io.Reader) ([]item, error) {
	dec := xml.NewDecoder(r)
	var items []item
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "item" {
			continue
		}
		var it item
		if err := dec.DecodeElement(&it, &start); err != nil {
			return nil, err
		}
		it.StationID = strings.TrimSpace(it.StationID)
		if it.StationID == "" {
			continue
		}
		items = append(items, it)
	}
}

func buildLiveStatus(items []item) domain.LiveStatus {
	live := make(domain.LiveStatus)
	for _, it := range items {
		code := strings.TrimSpace(it.ChargerType)
		live[it.StationID] = append(live[it.StationID], domain.ChargerDetail{
			Speed:       domain.ChargerSpeed(code),
			ChargerType: domain.ChargerTypeLabel(code),
			Status:      domain.ChargerStatusLabel(strings.TrimSpace(it.Stat)),
			ChargerID:   it.StationID + "-" + strings.TrimSpace(it.ChargerID),
		})
	}
	live.Summarize()
	return live
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("live status API error: status %d: %s", e.code, e.body)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode live status: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func outcomeOf(err error) string {
	var se *statusError
	var de *decodeError
	switch {
	case errors.As(err, &se):
		return "non_ok"
	case errors.As(err, &de):
		return "decode_error"
	default:
		return "error"
	}
}

// Disabled stands in for the feed when no service key is configured. Every
// station then receives synthetic statuses.
type Disabled struct{}

// FetchStatuses always returns an empty LiveStatus.
func (Disabled) FetchStatuses(context.Context) domain.LiveStatus { return domain.LiveStatus{} }
