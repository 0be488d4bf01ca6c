// Package goodinfo scrapes dividend schedules and last prices from goodinfo.tw.
package goodinfo

import (
	"context"
	"errors"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/navid-fn/twradar/internal/dividend"
	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/sirupsen/logrus"
)

const (
	Name                 = "GoodInfo"
	DefaultBaseURL       = "https://goodinfo.tw"
	DefaultRedirectDelay = 600 * time.Millisecond

	schedulePath = "/tw/StockDividendSchedule.asp"
	detailPath   = "/tw/StockDetail.asp"
)

var (
	redirectStub = regexp.MustCompile(`window\.location\.replace\('([^']+)'\)`)
	titleTag     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

	errRedirectLoop = errors.New("redirect stub returned again after following it")
)

type Client struct {
	desc          provider.Descriptor
	baseURL       string
	redirectDelay time.Duration
	http          *provider.HTTPClient
	logger        *logrus.Logger
}

func New(desc provider.Descriptor, baseURL string, redirectDelay time.Duration, logger *logrus.Logger) *Client {
	if desc.Name == "" {
		desc.Name = Name
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if redirectDelay < 0 {
		redirectDelay = DefaultRedirectDelay
	}
	baseURL = strings.TrimRight(baseURL, "/")

	c := &Client{
		desc:          desc,
		baseURL:       baseURL,
		redirectDelay: redirectDelay,
		http:          provider.NewHTTPClient(desc.Name, desc.RequestsPerSecond),
		logger:        logger,
	}
	c.http.Headers["Accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	c.http.Headers["Referer"] = baseURL + "/tw/"
	return c
}

func (c *Client) Descriptor() provider.Descriptor { return c.desc }

// GetDividendHistory scrapes the dividend schedule page. ETFs need YEAR_ID=9999
// to list every distribution instead of the current year only.
func (c *Client) GetDividendHistory(ctx context.Context, sym string, since time.Time) ([]models.DividendRecord, error) {
	params := url.Values{}
	params.Set("STOCK_ID", sym)
	if symbol.IsETF(sym) {
		params.Set("YEAR_ID", "9999")
	}

	doc, err := c.fetch(ctx, schedulePath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	res := dividend.Parse(sym, doc)
	c.logger.Debugf("[%s] %s: %d tables, %d windows, %d records", c.desc.Name, sym, res.TablesScanned, res.Windows, len(res.Records))

	records := models.DividendsSince(res.Records, since)
	if len(records) == 0 {
		return nil, provider.NotFound(c.desc.Name, "dividends", "no schedule rows for "+sym)
	}
	for i := range records {
		records[i].Source = c.desc.Name
	}
	return records, nil
}

// GetPrice reads the quote grid of the detail page: the row below the header
// holding 成交價 carries the values. Suffixes are ignored.
func (c *Client) GetPrice(ctx context.Context, sym string, _ []string) (*models.Quotation, error) {
	doc, err := c.fetch(ctx, detailPath+"?STOCK_ID="+url.QueryEscape(sym))
	if err != nil {
		return nil, err
	}

	price, prev, ok := scanQuote(dividend.Tables(doc))
	if !ok {
		return nil, provider.NotFound(c.desc.Name, "quote", "no 成交價 cell for "+sym)
	}

	q := models.NewQuotation(models.QuotationInput{
		Symbol:        sym,
		Name:          titleName(doc, sym),
		Price:         price,
		PreviousClose: prev,
		Market:        symbol.MarketLabel(sym),
		Source:        c.desc.Name,
	})
	return &q, nil
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.http.Reachable(ctx, c.baseURL+"/tw/index.asp")
}

// fetch follows at most one JS redirect stub.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	body, err := c.http.Get(ctx, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	target, stub := redirectTarget(body)
	if !stub {
		return body, nil
	}

	c.logger.Debugf("[%s] following redirect stub to %s", c.desc.Name, target)
	select {
	case <-ctx.Done():
		return nil, provider.NewError(provider.KindOf(ctx.Err()), c.desc.Name, "redirect wait", ctx.Err())
	case <-time.After(c.redirectDelay):
	}

	body, err = c.http.Get(ctx, c.baseURL+"/tw/"+strings.TrimPrefix(target, "/"), nil)
	if err != nil {
		return nil, err
	}
	if _, again := redirectTarget(body); again {
		return nil, provider.NewError(provider.KindMalformed, c.desc.Name, "redirect", errRedirectLoop)
	}
	return body, nil
}

func redirectTarget(body []byte) (string, bool) {
	if len(body) >= dividend.MinDocumentSize {
		return "", false
	}
	m := redirectStub.FindSubmatch(body)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

func scanQuote(tables [][][]string) (price, prev float64, ok bool) {
	for _, rows := range tables {
		for i := 0; i+1 < len(rows); i++ {
			priceCol, prevCol := -1, -1
			for j, cell := range rows[i] {
				switch cell {
				case "成交價":
					priceCol = j
				case "昨收":
					prevCol = j
				}
			}
			if priceCol < 0 || priceCol >= len(rows[i+1]) {
				continue
			}
			p, valid := number(rows[i+1][priceCol])
			if !valid || p <= 0 {
				continue
			}
			if prevCol >= 0 && prevCol < len(rows[i+1]) {
				prev, _ = number(rows[i+1][prevCol])
			}
			return p, prev, true
		}
	}
	return 0, 0, false
}

func number(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// titleName pulls the security name out of "2330 台積電 - 個股市況總覽 - Goodinfo!".
func titleName(doc []byte, sym string) string {
	m := titleTag.FindSubmatch(doc)
	if m == nil {
		return ""
	}
	title := html.UnescapeString(string(m[1]))
	if i := strings.Index(title, " - "); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(title), sym))
	if strings.Contains(title, "Goodinfo") {
		return ""
	}
	return title
}
