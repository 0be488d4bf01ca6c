// Package finmind reads daily prices, names and dividends from the FinMind open data API.
package finmind

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/navid-fn/twradar/utils"
	"github.com/sirupsen/logrus"
)

const (
	Name           = "FinMind"
	DefaultBaseURL = "https://api.finmindtrade.com/api/v4/data"

	DatasetPrice    = "TaiwanStockPrice"
	DatasetInfo     = "TaiwanStockInfo"
	DatasetDividend = "TaiwanStockDividend"

	priceLookback = 7 * 24 * time.Hour
	dateLayout    = "2006-01-02"
)

// Response is the envelope shared by every dataset. Status mirrors the HTTP
// code and is the only reliable error signal (402 means quota exhausted).
type Response[T any] struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
	Data   []T    `json:"data"`
}

type PriceRow struct {
	Date            string  `json:"date"`
	StockID         string  `json:"stock_id"`
	TradingVolume   float64 `json:"Trading_Volume"`
	TradingMoney    float64 `json:"Trading_money"`
	Open            float64 `json:"open"`
	Max             float64 `json:"max"`
	Min             float64 `json:"min"`
	Close           float64 `json:"close"`
	Spread          float64 `json:"spread"`
	TradingTurnover float64 `json:"Trading_turnover"`
}

type InfoRow struct {
	StockID          string `json:"stock_id"`
	StockName        string `json:"stock_name"`
	IndustryCategory string `json:"industry_category"`
	Type             string `json:"type"`
	Date             string `json:"date"`
}

type DividendRow struct {
	Date                       string  `json:"date"`
	StockID                    string  `json:"stock_id"`
	Year                       string  `json:"year"`
	StockEarningsDistribution  float64 `json:"StockEarningsDistribution"`
	StockStatutorySurplus      float64 `json:"StockStatutorySurplus"`
	StockExDividendTradingDate string  `json:"StockExDividendTradingDate"`
	CashEarningsDistribution   float64 `json:"CashEarningsDistribution"`
	CashStatutorySurplus       float64 `json:"CashStatutorySurplus"`
	CashExDividendTradingDate  string  `json:"CashExDividendTradingDate"`
	CashDividendPaymentDate    string  `json:"CashDividendPaymentDate"`
}

type Client struct {
	desc    provider.Descriptor
	baseURL string
	token   string
	http    *provider.HTTPClient
	logger  *logrus.Logger

	now func() time.Time
}

func New(desc provider.Descriptor, baseURL, token string, logger *logrus.Logger) *Client {
	if desc.Name == "" {
		desc.Name = Name
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		desc:    desc,
		baseURL: baseURL,
		token:   token,
		http:    provider.NewHTTPClient(desc.Name, desc.RequestsPerSecond),
		logger:  logger,
		now:     time.Now,
	}
	c.http.Headers["Accept"] = "application/json"
	return c
}

func (c *Client) Descriptor() provider.Descriptor { return c.desc }

// GetPrice returns the latest daily close from the last week. FinMind has no
// notion of exchange suffix, so suffixes only feed the market label.
func (c *Client) GetPrice(ctx context.Context, sym string, suffixes []string) (*models.Quotation, error) {
	end := c.now().In(utils.TaipeiLocation)
	rows, err := query[PriceRow](ctx, c, DatasetPrice, sym, end.Add(-priceLookback), end)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	last := rows[len(rows)-1]

	price := last.Close
	if price <= 0 {
		price = last.Open
	}
	if price <= 0 {
		return nil, provider.NotFound(c.desc.Name, "price", "no positive price in "+last.Date)
	}

	ts, err := utils.ParseDate(last.Date)
	if err != nil {
		ts = end
	}

	q := models.NewQuotation(models.QuotationInput{
		Symbol:        sym,
		Price:         price,
		PreviousClose: price - last.Spread,
		Open:          last.Open,
		High:          last.Max,
		Low:           last.Min,
		Volume:        last.TradingVolume,
		Market:        marketFor(sym, suffixes),
		Source:        c.desc.Name,
		Timestamp:     ts,
	})

	// A name lookup failure only costs the name.
	if name, err := c.GetName(ctx, sym); err == nil {
		q.Name = name
	} else if !provider.IsNotFound(err) {
		c.logger.Debugf("[%s] name lookup for %s failed: %v", c.desc.Name, sym, err)
	}
	return &q, nil
}

// GetName returns the Chinese short name from TaiwanStockInfo.
func (c *Client) GetName(ctx context.Context, sym string) (string, error) {
	rows, err := query[InfoRow](ctx, c, DatasetInfo, sym, time.Time{}, time.Time{})
	if err != nil {
		return "", err
	}
	// Rows are dated snapshots; the newest carries the current name.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	for _, r := range rows {
		if name := strings.TrimSpace(r.StockName); name != "" {
			return name, nil
		}
	}
	return "", provider.NotFound(c.desc.Name, "name", "no stock_name for "+sym)
}

func (c *Client) GetDividendHistory(ctx context.Context, sym string, since time.Time) ([]models.DividendRecord, error) {
	rows, err := query[DividendRow](ctx, c, DatasetDividend, sym, since, time.Time{})
	if err != nil {
		return nil, err
	}

	records := make([]models.DividendRecord, 0, len(rows))
	for _, r := range rows {
		cash := r.CashEarningsDistribution + r.CashStatutorySurplus
		stock := r.StockEarningsDistribution + r.StockStatutorySurplus
		if cash == 0 && stock == 0 {
			continue
		}

		exDate, err := firstDate(r.CashExDividendTradingDate, r.StockExDividendTradingDate, r.Date)
		if err != nil {
			c.logger.Debugf("[%s] skipping %s dividend row without a date", c.desc.Name, sym)
			continue
		}

		var payment *time.Time
		if p, err := utils.ParseDate(r.CashDividendPaymentDate); err == nil {
			payment = &p
		}

		records = append(records, models.NewDividendRecord(models.DividendInput{
			Symbol:         sym,
			ExDividendDate: exDate,
			PaymentDate:    payment,
			Cash:           cash,
			Stock:          stock,
			Source:         c.desc.Name,
		}))
	}

	records = models.DividendsSince(records, since)
	if len(records) == 0 {
		return nil, provider.NotFound(c.desc.Name, "dividends", "no distributions for "+sym)
	}
	models.SortDividendsDesc(records)
	return records, nil
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.http.Reachable(ctx, c.baseURL)
}

func query[T any](ctx context.Context, c *Client, dataset, sym string, start, end time.Time) ([]T, error) {
	params := url.Values{}
	params.Set("dataset", dataset)
	params.Set("data_id", sym)
	if !start.IsZero() {
		params.Set("start_date", start.Format(dateLayout))
	}
	if !end.IsZero() {
		params.Set("end_date", end.Format(dateLayout))
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	var resp Response[T]
	if err := c.http.GetJSON(ctx, c.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != 0 && resp.Status != 200 {
		return nil, provider.NewError(provider.KindTransport, c.desc.Name, dataset,
			fmt.Errorf("status %d: %s", resp.Status, resp.Msg))
	}
	if len(resp.Data) == 0 {
		return nil, provider.NotFound(c.desc.Name, dataset, "empty data for "+sym)
	}
	return resp.Data, nil
}

func firstDate(values ...string) (time.Time, error) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if t, err := utils.ParseDate(v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("no parseable date")
}

func marketFor(sym string, suffixes []string) models.Market {
	if len(suffixes) == 1 && suffixes[0] == symbol.SuffixOTC {
		return models.MarketOTC
	}
	return symbol.MarketLabel(sym)
}
