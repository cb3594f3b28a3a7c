package wiki

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUpstream wraps any network, timeout or non-2xx failure from the
// price or mapping endpoints.
var ErrUpstream = errors.New("upstream price service unavailable")

// Client talks to the RuneScape Wiki real-time price API and the item
// mapping endpoint. Every request carries the identifying User-Agent the
// upstream usage policy requires.
type Client struct {
	baseURL    string
	mappingURL string
	client     *resty.Client
}

// Note: the upstream naming is counterintuitive. "high" is the
// instant-buy price, "low" the instant-sell price; either may be absent
// when no trade happened in the window, hence the pointer fields.
type PriceInfo struct {
	High     *int   `json:"high"`
	HighTime *int64 `json:"highTime"`
	Low      *int   `json:"low"`
	LowTime  *int64 `json:"lowTime"`
}

type latestResponse struct {
	Data map[string]PriceInfo `json:"data"`
}

// SeriesPoint is one 5-minute bucket of the timeseries endpoint.
type SeriesPoint struct {
	Timestamp       int64 `json:"timestamp"`
	AvgHighPrice    *int  `json:"avgHighPrice"`
	AvgLowPrice     *int  `json:"avgLowPrice"`
	HighPriceVolume *int  `json:"highPriceVolume"`
	LowPriceVolume  *int  `json:"lowPriceVolume"`
}

type timeseriesResponse struct {
	Data []SeriesPoint `json:"data"`
}

// ItemMapping is one entry of the item metadata endpoint.
type ItemMapping struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Examine  string `json:"examine"`
	Members  bool   `json:"members"`
	BuyLimit int    `json:"limit"`
	Value    int    `json:"value"`
	HighAlch int    `json:"highalch"`
	LowAlch  int    `json:"lowalch"`
	Icon     string `json:"icon"`
}

func NewClient(baseURL, mappingURL, userAgent string) *Client {
	client := resty.New()
	// Ceiling for the full latest-price dump; single-item callers pass a
	// tighter 5s context.
	client.SetTimeout(10 * time.Second)
	client.SetHeader("User-Agent", userAgent)

	return &Client{
		baseURL:    baseURL,
		mappingURL: mappingURL,
		client:     client,
	}
}

// Latest returns the current price observation for one item.
func (c *Client) Latest(ctx context.Context, itemID int) (PriceInfo, error) {
	var out latestResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("id", strconv.Itoa(itemID)).
		SetResult(&out).
		Get(c.baseURL + "/latest")
	if err != nil {
		return PriceInfo{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode() != 200 {
		return PriceInfo{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}
	info, ok := out.Data[strconv.Itoa(itemID)]
	if !ok {
		return PriceInfo{}, fmt.Errorf("%w: no data for item %d", ErrUpstream, itemID)
	}
	return info, nil
}

// LatestAll returns the current observation for every traded item,
// keyed by item id.
func (c *Client) LatestAll(ctx context.Context) (map[string]PriceInfo, error) {
	var out latestResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.baseURL + "/latest")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}
	return out.Data, nil
}

// Timeseries returns the 5-minute bucketed series for one item, ordered
// by timestamp ascending as the upstream delivers it.
func (c *Client) Timeseries(ctx context.Context, itemID int) ([]SeriesPoint, error) {
	var out timeseriesResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"timestep": "5m",
			"id":       strconv.Itoa(itemID),
		}).
		SetResult(&out).
		Get(c.baseURL + "/timeseries")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}
	return out.Data, nil
}

// Mapping fetches the full item metadata list.
func (c *Client) Mapping(ctx context.Context) ([]ItemMapping, error) {
	var out []ItemMapping
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.mappingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}
	return out, nil
}
