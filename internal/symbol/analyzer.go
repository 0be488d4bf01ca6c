// Package symbol classifies Taiwan ticker symbols and derives the exchange
// suffixes to try against upstream quote services. Everything here is pure.
package symbol

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/navid-fn/twradar/internal/models"
)

const (
	SuffixListed = ".TW"
	SuffixOTC    = ".TWO"
)

var (
	bondETFPattern = regexp.MustCompile(`^00\d{2,3}B$`)
	etfPattern     = regexp.MustCompile(`^00\d{2,3}[A-Z]?$`)
	equityPattern  = regexp.MustCompile(`^\d{4,6}[A-Z]?$`)

	validPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}$`),
		regexp.MustCompile(`^\d{4}[ABCPULR]$`),
		regexp.MustCompile(`^00\d{2,3}$`),
		regexp.MustCompile(`^00\d{3}[A-Z]$`),
		regexp.MustCompile(`^\d{5,6}$`),
	}
)

// Normalize trims and uppercases a raw ticker.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Analyze classifies a ticker and returns its ordered candidates.
// Bond ETFs try the OTC suffix first; everything else tries listed first.
func Analyze(raw string) models.SymbolAnalysis {
	sym := Normalize(raw)

	analysis := models.SymbolAnalysis{
		RawSymbol:    raw,
		Symbol:       sym,
		SecurityType: models.SecurityEquity,
	}

	switch {
	case bondETFPattern.MatchString(sym):
		analysis.SecurityType = models.SecurityBondETF
		analysis.CandidateSuffixes = []string{SuffixOTC, SuffixListed}
		analysis.CandidateMarkets = []models.Market{models.MarketOTC, models.MarketListed}
	case etfPattern.MatchString(sym):
		analysis.SecurityType = models.SecurityETF
		analysis.CandidateSuffixes = []string{SuffixListed, SuffixOTC}
		analysis.CandidateMarkets = []models.Market{models.MarketListed, models.MarketOTC}
	default:
		analysis.CandidateSuffixes = []string{SuffixListed, SuffixOTC}
		analysis.CandidateMarkets = []models.Market{models.MarketListed, models.MarketOTC, models.MarketEmerging}
	}

	return analysis
}

// IsETF reports whether the ticker is any kind of ETF.
func IsETF(raw string) bool {
	t := Analyze(raw).SecurityType
	return t == models.SecurityETF || t == models.SecurityBondETF
}

// IsEquityCode reports whether the ticker has a 4-6 digit numeric prefix.
func IsEquityCode(raw string) bool {
	return equityPattern.MatchString(Normalize(raw))
}

// IsValid reports whether raw looks like a Taiwan stock or ETF code.
func IsValid(raw string) bool {
	sym := Normalize(raw)
	for _, p := range validPatterns {
		if p.MatchString(sym) {
			return true
		}
	}
	return false
}

// MarketLabel maps the numeric code range to a display label.
// Never used for control flow.
func MarketLabel(raw string) models.Market {
	sym := Normalize(raw)
	if IsETF(sym) {
		return models.MarketListed
	}
	if len(sym) < 4 {
		return models.MarketUnknown
	}
	code, err := strconv.Atoi(sym[:4])
	if err != nil {
		return models.MarketUnknown
	}

	switch {
	case code >= 1000 && code <= 2999:
		return models.MarketListed
	case code >= 3000 && code <= 6999:
		return models.MarketOTC
	case code >= 7000 && code <= 7999:
		return models.MarketEmerging
	case code >= 9000 && code <= 9999:
		return models.MarketOther
	default:
		return models.MarketUnknown
	}
}

// Suggestions returns hints shown next to a not-found result.
func Suggestions(raw string) []string {
	sym := Normalize(raw)
	hints := []string{"check that the symbol is listed on TWSE or TPEx"}

	if !IsValid(sym) {
		hints = append(hints, "symbols are 4-6 digits, optionally followed by one letter")
	}
	if strings.HasPrefix(sym, "00") && !strings.HasSuffix(sym, "B") {
		hints = append(hints, "bond ETFs end with B, e.g. "+sym+"B")
	}
	if strings.HasPrefix(sym, "00") {
		hints = append(hints, "verify the ETF code with the issuer")
	}
	return hints
}
