package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/logging"
)

const (
	defaultBaseURL  = "https://api.elections.kalshi.com/trade-api/v2"
	defaultPageSize = 200
	defaultMaxPages = 50
)

// Token sides. A Kalshi outcome token is "<market ticker>:<side>".
const (
	sideYes = "yes"
	sideNo  = "no"
)

// Client talks to the Kalshi Trade API.
type Client struct {
	baseURL   string
	pageSize  int
	maxPages  int
	transport *collectors.Transport
	books     singleflight.Group
}

// Config provides optional overrides.
type Config struct {
	BaseURL   string
	PageSize  int
	MaxPages  int
	Transport collectors.TransportConfig
}

// NewClient builds a configured Kalshi API client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = defaultPageSize // API limit
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	tc := cfg.Transport
	if tc.Name == "" {
		tc.Name = "kalshi"
	}
	return &Client{
		baseURL:   base,
		pageSize:  pageSize,
		maxPages:  maxPages,
		transport: collectors.NewTransport(tc),
	}
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenueKalshi
}

// TokenID builds the token a book is keyed by.
func TokenID(ticker, side string) string {
	return ticker + ":" + side
}

// ListMarkets follows the events cursor until it runs out.
func (c *Client) ListMarkets(ctx context.Context) ([]collectors.RawMarket, error) {
	var out []collectors.RawMarket
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		resp, err := c.listEvents(ctx, cursor)
		if err != nil {
			if len(out) == 0 {
				return nil, fmt.Errorf("list kalshi events: %w", err)
			}
			logging.Warnf("[kalshi] stopping at cursor %q: %v", cursor, err)
			break
		}
		for i := range resp.Events {
			if raw, ok := convertEvent(&resp.Events[i]); ok {
				out = append(out, raw)
			}
		}
		logging.Debugf("[kalshi] page %d: %d events", page, len(resp.Events))
		cursor = resp.Cursor
		if cursor == "" || len(resp.Events) == 0 {
			break
		}
	}
	logging.Infof("[kalshi] listed %d events", len(out))
	return out, nil
}

func (c *Client) listEvents(ctx context.Context, cursor string) (*eventsResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("status", "open")
	q.Set("with_nested_markets", "true")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var out eventsResponse
	if err := c.transport.GetJSON(ctx, c.baseURL+"/events?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchBook returns the book of one side of a market. Kalshi only publishes
// bids, so each side's asks are derived from the other side's bids.
// Concurrent requests for both sides of a ticker share one HTTP call.
func (c *Client) FetchBook(ctx context.Context, tokenID string) (collectors.RawBook, error) {
	ticker, side, ok := strings.Cut(tokenID, ":")
	if !ok || ticker == "" || (side != sideYes && side != sideNo) {
		return collectors.RawBook{}, fmt.Errorf("%w: kalshi token %q", collectors.ErrMalformed, tokenID)
	}

	v, err, _ := c.books.Do(ticker, func() (any, error) {
		return c.fetchOrderbook(ctx, ticker)
	})
	if err != nil {
		return collectors.RawBook{}, fmt.Errorf("kalshi book %s: %w", ticker, err)
	}
	ob := v.(bookPayload)

	yesBids := convertLevels(ob.Yes)
	noBids := convertLevels(ob.No)
	book := collectors.RawBook{TokenID: tokenID}
	if side == sideYes {
		book.Bids, book.Asks = yesBids, deriveAsksFromOpposite(noBids)
	} else {
		book.Bids, book.Asks = noBids, deriveAsksFromOpposite(yesBids)
	}
	return book, nil
}

func (c *Client) fetchOrderbook(ctx context.Context, ticker string) (bookPayload, error) {
	u := fmt.Sprintf("%s/markets/%s/orderbook", c.baseURL, url.PathEscape(ticker))
	var out orderbookResponse
	if err := c.transport.GetJSON(ctx, u, &out); err != nil {
		return bookPayload{}, err
	}
	return out.Orderbook, nil
}

// convertEvent maps a one-market event to a binary pair and a multi-market
// event to one child per active market, keyed by its Yes side.
func convertEvent(ev *event) (collectors.RawMarket, bool) {
	var markets []*market
	for i := range ev.Markets {
		m := &ev.Markets[i]
		if m.Status != "" && m.Status != "active" {
			continue
		}
		markets = append(markets, m)
	}
	if len(markets) == 0 {
		return collectors.RawMarket{}, false
	}

	raw := collectors.RawMarket{
		Venue:    collectors.VenueKalshi,
		ID:       ev.Ticker,
		Title:    ev.Title,
		Deadline: parseTime(markets[0].CloseTime),
	}
	if len(markets) == 1 {
		m := markets[0]
		raw.YesToken = TokenID(m.Ticker, sideYes)
		raw.NoToken = TokenID(m.Ticker, sideNo)
		raw.VolumeUSD = float64(m.Volume)
		return raw, true
	}
	for _, m := range markets {
		raw.Children = append(raw.Children, collectors.RawChild{
			Title:     outcomeName(ev.Title, m),
			YesToken:  TokenID(m.Ticker, sideYes),
			VolumeUSD: float64(m.Volume),
		})
		raw.VolumeUSD += float64(m.Volume)
	}
	return raw, true
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func centsToFloat(v float64) float64 {
	return v / 100.0
}

func convertLevels(levels [][]float64) []collectors.RawLevel {
	out := make([]collectors.RawLevel, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		out = append(out, collectors.RawLevel{Price: centsToFloat(lvl[0]), Size: lvl[1]})
	}
	return out
}

func deriveAsksFromOpposite(oppositeBids []collectors.RawLevel) []collectors.RawLevel {
	if len(oppositeBids) == 0 {
		return nil
	}
	asks := make([]collectors.RawLevel, 0, len(oppositeBids))
	for _, lvl := range oppositeBids {
		price := 1 - lvl.Price
		if price < 0 {
			price = 0
		}
		if price > 1 {
			price = 1
		}
		asks = append(asks, collectors.RawLevel{Price: price, Size: lvl.Size})
	}
	return asks
}

// outcomeName picks the label of one market inside a categorical event.
func outcomeName(eventTitle string, m *market) string {
	if s := strings.TrimSpace(m.YesSubTitle); s != "" {
		return s
	}
	if alias := extractEntityFromRules(m.RulesPrimary); alias != "" {
		return alias
	}
	if alias := extractEntityFromTitle(m.Title); alias != "" {
		return alias
	}
	if s := strings.TrimSpace(m.SubTitle); s != "" {
		return s
	}
	if m.Title != "" && m.Title != eventTitle {
		return m.Title
	}
	if parts := strings.Split(m.Ticker, "-"); len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return m.Ticker
}

func extractEntityFromRules(rule string) string {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return ""
	}
	lower := strings.ToLower(rule)
	if !strings.HasPrefix(lower, "if ") {
		return ""
	}
	trimmed := strings.TrimSpace(rule[3:])
	lowerTrimmed := strings.ToLower(trimmed)
	keywords := []string{" becomes", " is ", " wins", " will ", " reaches", " secures", " scores", " resigns", " retires", " defeats", " beats", " finishes", " captures", " takes", " makes", " receives", " gets "}
	pos := -1
	for _, kw := range keywords {
		if idx := strings.Index(lowerTrimmed, kw); idx != -1 && (pos == -1 || idx < pos) {
			pos = idx
		}
	}
	if pos == -1 {
		if idx := strings.Index(lowerTrimmed, ","); idx != -1 {
			pos = idx
		} else if idx := strings.Index(lowerTrimmed, " then"); idx != -1 {
			pos = idx
		} else {
			pos = len(trimmed)
		}
	}
	return strings.Trim(strings.TrimSpace(trimmed[:pos]), `"'`)
}

func extractEntityFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if !strings.HasPrefix(strings.ToLower(title), "will ") {
		return ""
	}
	title = title[5:]
	lower := strings.ToLower(title)

	endIdx := strings.Index(lower, " become")
	if endIdx == -1 {
		endIdx = strings.Index(lower, " be ")
	}
	if endIdx == -1 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(title[:endIdx]), `"'`)
}

type eventsResponse struct {
	Events []event `json:"events"`
	Cursor string  `json:"cursor"`
}

type event struct {
	Ticker  string   `json:"event_ticker"`
	Title   string   `json:"title"`
	Markets []market `json:"markets"`
}

type market struct {
	Ticker       string `json:"ticker"`
	Title        string `json:"title"`
	SubTitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title"`
	Status       string `json:"status"`
	Volume       int64  `json:"volume"`
	RulesPrimary string `json:"rules_primary"`
	CloseTime    string `json:"close_time"`
}

type orderbookResponse struct {
	Orderbook bookPayload `json:"orderbook"`
}

type bookPayload struct {
	Yes [][]float64 `json:"yes"`
	No  [][]float64 `json:"no"`
}
