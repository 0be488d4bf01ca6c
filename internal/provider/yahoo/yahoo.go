// Package yahoo reads quotes and dividend events from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/navid-fn/twradar/utils"
	"github.com/sirupsen/logrus"
)

const (
	Name           = "Yahoo"
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	chartPath = "/v8/finance/chart/"
)

// ChartResponse is the /v8/finance/chart envelope.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta   Meta `json:"meta"`
	Events struct {
		Dividends map[string]DividendEvent `json:"dividends"`
	} `json:"events"`
}

// Meta fields are pointers so a missing field is distinguishable from zero.
type Meta struct {
	Currency           string   `json:"currency"`
	Symbol             string   `json:"symbol"`
	ExchangeName       string   `json:"exchangeName"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	PreviousClose      *float64 `json:"previousClose"`
	ChartPreviousClose *float64 `json:"chartPreviousClose"`
	RegularMarketTime  *int64   `json:"regularMarketTime"`
	RegularMarketHigh  *float64 `json:"regularMarketDayHigh"`
	RegularMarketLow   *float64 `json:"regularMarketDayLow"`
	RegularMarketVol   *float64 `json:"regularMarketVolume"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
}

type DividendEvent struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
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

// GetPrice tries each suffix in order; the first ticker Yahoo knows wins.
func (c *Client) GetPrice(ctx context.Context, sym string, suffixes []string) (*models.Quotation, error) {
	for _, suffix := range orDefault(suffixes) {
		result, err := c.chart(ctx, sym+suffix, nil)
		if err != nil {
			if provider.IsNotFound(err) {
				c.logger.Debugf("[%s] %s%s not found", c.desc.Name, sym, suffix)
				continue
			}
			return nil, err
		}

		meta := result.Meta
		if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice <= 0 {
			continue
		}

		prev := deref(meta.PreviousClose)
		if prev <= 0 {
			prev = deref(meta.ChartPreviousClose)
		}
		ts := time.Now()
		if meta.RegularMarketTime != nil {
			ts = utils.UnixToTaipei(*meta.RegularMarketTime)
		}

		market := models.MarketListed
		if suffix == symbol.SuffixOTC {
			market = models.MarketOTC
		}

		q := models.NewQuotation(models.QuotationInput{
			Symbol:        sym,
			Name:          firstNonEmpty(meta.LongName, meta.ShortName, sym),
			Price:         *meta.RegularMarketPrice,
			PreviousClose: prev,
			High:          deref(meta.RegularMarketHigh),
			Low:           deref(meta.RegularMarketLow),
			Volume:        deref(meta.RegularMarketVol),
			Market:        market,
			Source:        c.desc.Name,
			Timestamp:     ts,
		})
		return &q, nil
	}
	return nil, provider.NotFound(c.desc.Name, "quote", "no chart for "+sym)
}

// GetDividendHistory reads the chart's dividend events. Yahoo reports
// cash amounts only, so every record is a cash dividend.
func (c *Client) GetDividendHistory(ctx context.Context, sym string, since time.Time) ([]models.DividendRecord, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("events", "div")
	params.Set("range", dividendRange(since))

	for _, suffix := range symbol.Analyze(sym).CandidateSuffixes {
		result, err := c.chart(ctx, sym+suffix, params)
		if err != nil {
			if provider.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(result.Events.Dividends) == 0 {
			continue
		}

		records := make([]models.DividendRecord, 0, len(result.Events.Dividends))
		for _, ev := range result.Events.Dividends {
			if ev.Amount <= 0 || ev.Date <= 0 {
				continue
			}
			records = append(records, models.NewDividendRecord(models.DividendInput{
				Symbol:         sym,
				ExDividendDate: utils.TaipeiDate(utils.UnixToTaipei(ev.Date)),
				Cash:           ev.Amount,
				Source:         c.desc.Name,
			}))
		}
		models.SortDividendsDesc(records)
		return models.DividendsSince(records, since), nil
	}
	return nil, provider.NotFound(c.desc.Name, "dividends", "no dividend events for "+sym)
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.http.Reachable(ctx, c.baseURL+chartPath+"2330.TW")
}

func (c *Client) chart(ctx context.Context, ticker string, params url.Values) (*ChartResult, error) {
	u := c.baseURL + chartPath + url.PathEscape(ticker)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var resp ChartResponse
	if err := c.http.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, provider.NotFound(c.desc.Name, "chart", e.Description)
		}
		return nil, provider.NewError(provider.KindTransport, c.desc.Name, "chart", errors.New(e.Code+": "+e.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, provider.NotFound(c.desc.Name, "chart", fmt.Sprintf("empty result for %s", ticker))
	}
	return &resp.Chart.Result[0], nil
}

// dividendRange picks the smallest chart range covering since.
func dividendRange(since time.Time) string {
	if since.IsZero() {
		return "5y"
	}
	years := time.Since(since).Hours() / 24 / 365
	switch {
	case years <= 1:
		return "1y"
	case years <= 2:
		return "2y"
	case years <= 5:
		return "5y"
	case years <= 10:
		return "10y"
	default:
		return "max"
	}
}

func orDefault(suffixes []string) []string {
	if len(suffixes) == 0 {
		return []string{symbol.SuffixListed, symbol.SuffixOTC}
	}
	return suffixes
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
