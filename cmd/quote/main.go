package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/bootstrap"
	"github.com/navid-fn/twradar/internal/engine"
	"github.com/navid-fn/twradar/internal/logger"
	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/utils"
)

func main() {
	var (
		symbols   string
		dividends bool
		since     string
		health    bool
		asJSON    bool
	)

	flag.StringVar(&symbols, "symbols", "", "Comma-separated tickers, e.g. 2330,0050,00679B (required)")
	flag.BoolVar(&dividends, "dividends", false, "Print dividend history instead of quotes")
	flag.StringVar(&since, "since", "", "Dividend history start date, YYYY-MM-DD (default: five years ago)")
	flag.BoolVar(&health, "health", false, "Print provider health after resolving")
	flag.BoolVar(&asJSON, "json", false, "Print JSON")
	flag.Parse()

	if symbols == "" {
		fmt.Fprintf(os.Stderr, "Error: -symbols flag is required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -symbols <list> [-dividends] [-since YYYY-MM-DD] [-json]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -symbols 2330\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -symbols 2330,0050,00679B -json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -symbols 0056 -dividends -since 2022-01-01\n", os.Args[0])
		os.Exit(1)
	}

	cfg := configs.AppLoad()
	// Keep stdout for results.
	log := logger.New(cfg.LogLevel)
	log.SetOutput(os.Stderr)

	eng, err := bootstrap.NewEngine(cfg, log)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	list := strings.Split(symbols, ",")

	var out any
	if dividends {
		from := time.Now().AddDate(-5, 0, 0)
		if since != "" {
			if from, err = utils.ParseDate(since); err != nil {
				log.Fatalf("Invalid -since %q: %v", since, err)
			}
		}
		history := make(map[string][]models.DividendRecord, len(list))
		for _, sym := range list {
			records, err := eng.GetDividendHistory(ctx, sym, from)
			if err != nil {
				log.Errorf("%s: %v", sym, err)
				continue
			}
			history[strings.ToUpper(strings.TrimSpace(sym))] = records
		}
		out = history
		if !asJSON {
			printDividends(history)
		}
	} else {
		quotes := eng.GetBatchPrices(ctx, list)
		out = quotes
		if !asJSON {
			printQuotes(list, quotes)
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if health {
			out = map[string]any{"result": out, "health": eng.GetHealthStatus()}
		}
		if err := enc.Encode(out); err != nil {
			log.Fatalf("Failed to encode output: %v", err)
		}
		return
	}
	if health {
		printHealth(eng.GetHealthStatus())
	}
}

func printQuotes(list []string, quotes map[string]*models.Quotation) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tPRICE\tCHANGE\t%\tMARKET\tSOURCE")
	for _, raw := range list {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		q, ok := quotes[sym]
		if !ok {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\tnot found\n", sym)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%+.2f\t%+.2f\t%s\t%s\n",
			q.Symbol, q.Name, q.Price, q.Change, q.ChangePercent, q.Market, q.Source)
	}
	w.Flush()
}

func printDividends(history map[string][]models.DividendRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tEX-DATE\tCASH\tSTOCK\tTYPE\tSOURCE")
	for sym, records := range history {
		if len(records) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\tno dividends\n", sym)
			continue
		}
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%s\t%s\n",
				sym, r.ExDividendDate.Format(time.DateOnly), r.CashPerShare, r.StockPerShare, r.Type, r.Source)
		}
	}
	w.Flush()
}

func printHealth(report engine.HealthReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\nOVERALL: %s\n", report.Overall)
	fmt.Fprintln(w, "PROVIDER\tSTATE\tOK\tFAIL\tRATE")
	for _, p := range report.Providers {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f%%\n", p.Name, p.State, p.SuccessCount, p.FailureCount, p.SuccessRate)
	}
	w.Flush()
}
