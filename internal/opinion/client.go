// Package opinion reads markets and order books from the Opinion.Trade
// open API.
package opinion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/logging"
)

const (
	defaultBaseURL      = "https://proxy.opinion.trade:8443/openapi"
	defaultPageSize     = 20
	defaultMaxPages     = 200
	defaultRequestDelay = 70 * time.Millisecond
)

// Market types accepted by the /market endpoint.
const (
	marketTypeBinary      = 0
	marketTypeCategorical = 1
)

type Config struct {
	BaseURL   string
	APIKey    string
	PageSize  int
	MaxPages  int
	Transport collectors.TransportConfig
}

// Client is a collectors.Source for Opinion.Trade. Every request carries the
// API key and is spaced by the transport's request delay.
type Client struct {
	baseURL   string
	pageSize  int
	maxPages  int
	transport *collectors.Transport
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	tc := cfg.Transport
	if tc.Name == "" {
		tc.Name = "opinion"
	}
	if tc.RequestDelay == 0 {
		tc.RequestDelay = defaultRequestDelay
	}
	headers := make(map[string]string, len(tc.Headers)+1)
	for k, v := range tc.Headers {
		headers[k] = v
	}
	headers["apikey"] = cfg.APIKey
	tc.Headers = headers

	return &Client{
		baseURL:   base,
		pageSize:  pageSize,
		maxPages:  maxPages,
		transport: collectors.NewTransport(tc),
	}
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenueOpinion
}

// ListMarkets walks binary markets first, then categorical ones. Each walk
// ends on an empty page or a non-zero errno.
func (c *Client) ListMarkets(ctx context.Context) ([]collectors.RawMarket, error) {
	var out []collectors.RawMarket
	var firstErr error
	for _, marketType := range []int{marketTypeBinary, marketTypeCategorical} {
		got, err := c.listType(ctx, marketType)
		out = append(out, got...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Warnf("[opinion] marketType=%d: %v", marketType, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, fmt.Errorf("opinion list markets: %w", firstErr)
	}
	logging.Infof("[opinion] listed %d markets", len(out))
	return out, nil
}

func (c *Client) listType(ctx context.Context, marketType int) ([]collectors.RawMarket, error) {
	var out []collectors.RawMarket
	for page := 1; page <= c.maxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("marketType", strconv.Itoa(marketType))

		var env envelope[marketList]
		if err := c.transport.GetJSON(ctx, c.baseURL+"/market?"+q.Encode(), &env); err != nil {
			return out, err
		}
		if env.Errno != 0 {
			logging.Debugf("[opinion] marketType=%d page=%d errno=%d %s", marketType, page, env.Errno, env.Errmsg)
			break
		}
		if len(env.Result.List) == 0 {
			break
		}
		for i := range env.Result.List {
			out = append(out, convertMarket(&env.Result.List[i], marketType))
		}
	}
	return out, nil
}

// FetchBook reads /token/orderbook. A non-zero errno means the venue has no
// book for the token.
func (c *Client) FetchBook(ctx context.Context, tokenID string) (collectors.RawBook, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)

	var env envelope[orderbook]
	if err := c.transport.GetJSON(ctx, c.baseURL+"/token/orderbook?"+q.Encode(), &env); err != nil {
		return collectors.RawBook{}, fmt.Errorf("opinion book %s: %w", tokenID, err)
	}
	if env.Errno != 0 {
		return collectors.RawBook{}, fmt.Errorf("%w: opinion book %s: errno %d %s", collectors.ErrNotFound, tokenID, env.Errno, env.Errmsg)
	}
	book := collectors.RawBook{TokenID: tokenID}
	for _, lvl := range env.Result.Bids {
		book.Bids = append(book.Bids, lvl.raw())
	}
	for _, lvl := range env.Result.Asks {
		book.Asks = append(book.Asks, lvl.raw())
	}
	return book, nil
}

func convertMarket(m *market, marketType int) collectors.RawMarket {
	raw := collectors.RawMarket{
		Venue:     collectors.VenueOpinion,
		ID:        m.MarketID.String(),
		Title:     m.MarketTitle,
		VolumeUSD: m.Volume.Float(),
	}
	if secs := m.CutoffAt.IntPart(); secs > 0 {
		raw.Deadline = time.Unix(secs, 0).UTC()
	}
	if marketType == marketTypeBinary {
		raw.YesToken = m.YesTokenID
		raw.NoToken = m.NoTokenID
		return raw
	}

	var vol float64
	for _, child := range m.ChildMarkets {
		if strings.TrimSpace(child.MarketTitle) == "" || strings.TrimSpace(child.YesTokenID) == "" {
			continue
		}
		raw.Children = append(raw.Children, collectors.RawChild{
			Title:     child.MarketTitle,
			YesToken:  child.YesTokenID,
			VolumeUSD: child.Volume.Float(),
		})
		vol += child.Volume.Float()
	}
	raw.VolumeUSD = vol
	return raw
}

type envelope[T any] struct {
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg"`
	Result T      `json:"result"`
}

type marketList struct {
	List []market `json:"list"`
}

type market struct {
	MarketID     json.Number       `json:"marketId"`
	MarketTitle  string            `json:"marketTitle"`
	YesTokenID   string            `json:"yesTokenId"`
	NoTokenID    string            `json:"noTokenId"`
	Volume       collectors.Amount `json:"volume"`
	CutoffAt     collectors.Amount `json:"cutoffAt"`
	ChildMarkets []childMarket     `json:"childMarkets"`
}

type childMarket struct {
	MarketTitle string            `json:"marketTitle"`
	YesTokenID  string            `json:"yesTokenId"`
	Volume      collectors.Amount `json:"volume"`
}

type orderbook struct {
	Bids []level `json:"bids"`
	Asks []level `json:"asks"`
}

type level struct {
	Price collectors.Amount `json:"price"`
	Size  collectors.Amount `json:"size"`
}

func (l level) raw() collectors.RawLevel {
	return collectors.RawLevel{Price: l.Price.Float(), Size: l.Size.Float()}
}
