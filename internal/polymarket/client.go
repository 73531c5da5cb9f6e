package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/logging"
)

const (
	defaultBaseURL  = "https://gamma-api.polymarket.com/events"
	defaultBookURL  = "https://clob.polymarket.com/book"
	defaultPageSize = 500
	defaultMaxPages = 40
)

// Client lists Polymarket events from the Gamma API and reads CLOB books.
type Client struct {
	baseURL   string
	bookURL   string
	pageSize  int
	maxPages  int
	transport *collectors.Transport
}

// Config controls optional overrides for the client.
type Config struct {
	BaseURL   string
	BookURL   string
	PageSize  int
	MaxPages  int
	Transport collectors.TransportConfig
}

// NewClient builds a Polymarket client with sane defaults.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	book := cfg.BookURL
	if book == "" {
		book = defaultBookURL
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
		tc.Name = "polymarket"
	}
	return &Client{
		baseURL:   base,
		bookURL:   book,
		pageSize:  pageSize,
		maxPages:  maxPages,
		transport: collectors.NewTransport(tc),
	}
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenuePolymarket
}

// ListMarkets pages through every active, open event. A page that fails
// after retries ends the walk; events already read are still returned
// unless nothing was read at all.
func (c *Client) ListMarkets(ctx context.Context) ([]collectors.RawMarket, error) {
	var out []collectors.RawMarket
	for page := 0; page < c.maxPages; page++ {
		offset := page * c.pageSize
		events, err := c.listEvents(ctx, c.pageSize, offset)
		if err != nil {
			if len(out) == 0 {
				return nil, fmt.Errorf("polymarket list events: %w", err)
			}
			logging.Warnf("[polymarket] stopping at offset %d: %v", offset, err)
			break
		}
		for i := range events {
			if raw, ok := convertEvent(&events[i]); ok {
				out = append(out, raw)
			}
		}
		logging.Debugf("[polymarket] offset %d: %d events", offset, len(events))
		if len(events) < c.pageSize {
			break
		}
	}
	logging.Infof("[polymarket] listed %d events", len(out))
	return out, nil
}

func (c *Client) listEvents(ctx context.Context, limit, offset int) ([]eventDetail, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	var events []eventDetail
	if err := c.transport.GetJSON(ctx, u.String(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FetchBook reads the CLOB book of one outcome token.
func (c *Client) FetchBook(ctx context.Context, tokenID string) (collectors.RawBook, error) {
	u, err := url.Parse(c.bookURL)
	if err != nil {
		return collectors.RawBook{}, err
	}
	q := u.Query()
	q.Set("token_id", tokenID)
	u.RawQuery = q.Encode()

	var book clobBook
	if err := c.transport.GetJSON(ctx, u.String(), &book); err != nil {
		return collectors.RawBook{}, fmt.Errorf("polymarket book %s: %w", tokenID, err)
	}
	return convertClobBook(tokenID, book), nil
}

// convertEvent maps a single-market event to an outcome list and a
// multi-market event to one child per market, keyed by its Yes token.
func convertEvent(ev *eventDetail) (collectors.RawMarket, bool) {
	var markets []*market
	for i := range ev.Markets {
		m := &ev.Markets[i]
		if m.Closed || !m.Active || isPlaceholderMarket(m) {
			continue
		}
		markets = append(markets, m)
	}
	if len(markets) == 0 {
		return collectors.RawMarket{}, false
	}

	raw := collectors.RawMarket{
		Venue:    collectors.VenuePolymarket,
		ID:       ev.ID,
		Title:    ev.Title,
		Deadline: parseTime(markets[0].EndDate),
	}
	if raw.Title == "" {
		raw.Title = markets[0].Question
	}
	if raw.Deadline.IsZero() {
		raw.Deadline = parseTime(ev.EndDate)
	}

	if len(markets) == 1 {
		m := markets[0]
		raw.OutcomeNames = string(m.Outcomes)
		raw.TokenIDs = string(m.ClobTokenIDs)
		raw.VolumeUSD = m.volume()
		return raw, true
	}
	for _, m := range markets {
		raw.Children = append(raw.Children, collectors.RawChild{
			Title:     strings.TrimSpace(m.Question),
			TokenIDs:  string(m.ClobTokenIDs),
			VolumeUSD: m.volume(),
		})
		raw.VolumeUSD += m.volume()
	}
	return raw, true
}

func convertClobBook(tokenID string, b clobBook) collectors.RawBook {
	out := collectors.RawBook{TokenID: tokenID}
	for _, lvl := range b.Bids {
		out.Bids = append(out.Bids, lvl.raw())
	}
	for _, lvl := range b.Asks {
		out.Asks = append(out.Asks, lvl.raw())
	}
	return out
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

var placeholderQuestionRe = regexp.MustCompile(`(?i)^will\s+\w+\s+[a-z]\b`)

// isPlaceholderMarket filters "Will Person X win" style slots that Polymarket
// lists before a real name is assigned.
func isPlaceholderMarket(m *market) bool {
	q := strings.TrimSpace(m.Question)
	if placeholderQuestionRe.MatchString(q) {
		return true
	}
	desc := strings.ToLower(m.Description)
	return strings.Contains(desc, "may be updated to replace") || strings.Contains(desc, "placeholder")
}

type eventDetail struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	EndDate string   `json:"endDate"`
	Markets []market `json:"markets"`
}

type market struct {
	ID           string            `json:"id"`
	Question     string            `json:"question"`
	Description  string            `json:"description"`
	Outcomes     jsonList          `json:"outcomes"`
	ClobTokenIDs jsonList          `json:"clobTokenIds"`
	Volume       collectors.Amount `json:"volume"`
	VolumeNum    collectors.Amount `json:"volumeNum"`
	EndDate      string            `json:"endDate"`
	Active       bool              `json:"active"`
	Closed       bool              `json:"closed"`
}

func (m *market) volume() float64 {
	if !m.Volume.IsZero() {
		return m.Volume.Float()
	}
	return m.VolumeNum.Float()
}

// jsonList holds a JSON array that Gamma sometimes sends encoded inside a
// string. It is kept in its array form.
type jsonList string

func (l *jsonList) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = jsonList(s)
		return nil
	}
	*l = jsonList(b)
	return nil
}

type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price collectors.Amount `json:"price"`
	Size  collectors.Amount `json:"size"`
}

func (l clobLevel) raw() collectors.RawLevel {
	return collectors.RawLevel{Price: l.Price.Float(), Size: l.Size.Float()}
}
