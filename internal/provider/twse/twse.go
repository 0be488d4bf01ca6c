// Package twse reads real-time quotes from the TWSE market information system (MIS).
package twse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/navid-fn/twradar/utils"
	"github.com/sirupsen/logrus"
)

const (
	Name           = "TWSE"
	DefaultBaseURL = "https://mis.twse.com.tw"

	quotePath = "/stock/api/getStockInfo.jsp"
	indexPath = "/stock/index.jsp"
)

// StockInfoResponse is the getStockInfo.jsp envelope.
type StockInfoResponse struct {
	MsgArray  []StockInfo `json:"msgArray"`
	RtCode    string      `json:"rtcode"`
	RtMessage string      `json:"rtmessage"`
}

// StockInfo is one msgArray row. MIS sends every number as a string and
// uses "-" for values it has not published yet.
type StockInfo struct {
	Code      string `json:"c"`
	Name      string `json:"n"`
	Last      string `json:"z"`
	PrevTrade string `json:"pz"`
	Yesterday string `json:"y"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Date      string `json:"d"`
	Time      string `json:"t"`
	TLong     string `json:"tlong"`
	Exchange  string `json:"ex"`
}

type Client struct {
	desc    provider.Descriptor
	baseURL string
	http    *provider.HTTPClient
	logger  *logrus.Logger
}

func New(desc provider.Descriptor, baseURL string, logger *logrus.Logger) *Client {
	if desc.Name == "" {
		desc.Name = Name
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		desc:    desc,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    provider.NewHTTPClient(desc.Name, desc.RequestsPerSecond),
		logger:  logger,
	}
}

func (c *Client) Descriptor() provider.Descriptor { return c.desc }

// GetPrice asks each MIS segment implied by suffixes in order.
// A row without a usable name means the symbol is not on that segment.
func (c *Client) GetPrice(ctx context.Context, sym string, suffixes []string) (*models.Quotation, error) {
	for _, segment := range segments(suffixes) {
		info, err := c.fetch(ctx, segment, sym)
		if err != nil {
			if provider.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		q, ok := c.toQuotation(sym, segment, info)
		if !ok {
			c.logger.Debugf("[%s] %s on %s has no price yet", c.desc.Name, sym, segment)
			continue
		}
		return q, nil
	}
	return nil, provider.NotFound(c.desc.Name, "quote", "symbol "+sym+" not on any segment")
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.http.Reachable(ctx, c.baseURL+indexPath)
}

func (c *Client) fetch(ctx context.Context, segment, sym string) (*StockInfo, error) {
	url := fmt.Sprintf("%s%s?ex_ch=%s_%s.tw&json=1&delay=0", c.baseURL, quotePath, segment, strings.ToLower(sym))

	var resp StockInfoResponse
	if err := c.http.GetJSON(ctx, url, map[string]string{"Referer": c.baseURL + indexPath}, &resp); err != nil {
		return nil, err
	}
	if len(resp.MsgArray) == 0 {
		return nil, provider.NotFound(c.desc.Name, "quote", "empty msgArray")
	}

	info := resp.MsgArray[0]
	if info.Name == "" || strings.Contains(info.Name, "?") {
		return nil, provider.NotFound(c.desc.Name, "quote", "no name on "+segment)
	}
	return &info, nil
}

func (c *Client) toQuotation(sym, segment string, info *StockInfo) (*models.Quotation, bool) {
	yesterday, hasY := parseField(info.Yesterday)

	status := models.StatusTrading
	price, ok := parseField(info.Last)
	if !ok {
		price, ok = parseField(info.PrevTrade)
	}
	if !ok && hasY {
		price, ok = yesterday, true
		status = models.StatusSuspended
	}
	if !ok || price <= 0 {
		return nil, false
	}

	open, _ := parseField(info.Open)
	high, _ := parseField(info.High)
	low, _ := parseField(info.Low)
	volume, _ := parseField(info.Volume)

	q := models.NewQuotation(models.QuotationInput{
		Symbol:        sym,
		Name:          strings.TrimSpace(info.Name),
		Price:         price,
		PreviousClose: yesterday,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        volume,
		Market:        segmentMarket(segment, sym),
		Status:        status,
		Source:        c.desc.Name,
		Timestamp:     quoteTime(info),
	})
	return &q, true
}

// segments maps exchange suffixes to MIS channel prefixes, keeping order.
func segments(suffixes []string) []string {
	if len(suffixes) == 0 {
		suffixes = []string{symbol.SuffixListed, symbol.SuffixOTC}
	}
	out := make([]string, 0, len(suffixes))
	seen := map[string]bool{}
	for _, s := range suffixes {
		seg := "tse"
		if strings.EqualFold(s, symbol.SuffixOTC) {
			seg = "otc"
		}
		if !seen[seg] {
			seen[seg] = true
			out = append(out, seg)
		}
	}
	return out
}

// Emerging-board quotes are served on the otc channel.
func segmentMarket(segment, sym string) models.Market {
	if segment == "tse" {
		return models.MarketListed
	}
	if symbol.MarketLabel(sym) == models.MarketEmerging {
		return models.MarketEmerging
	}
	return models.MarketOTC
}

// parseField reads a MIS numeric string. "-" and empty mean absent.
// Bid/ask style fields may carry several "_" separated values; the first counts.
func parseField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func quoteTime(info *StockInfo) time.Time {
	if ms, err := strconv.ParseInt(info.TLong, 10, 64); err == nil && ms > 0 {
		return utils.UnixMilliToTaipei(ms)
	}
	if info.Date != "" && info.Time != "" {
		if t, err := time.ParseInLocation("20060102 15:04:05", info.Date+" "+info.Time, utils.TaipeiLocation); err == nil {
			return t
		}
	}
	return time.Now()
}
