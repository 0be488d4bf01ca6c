// Package dividend extracts dividend rows from GoodInfo-style HTML schedule tables.
//
// The pages carry no stable ids or classes, so rows are recognised by shape:
// a 4-digit year, a quarter or payment cell, an ex-dividend date, then a
// plausible per-share amount within the next few cells.
package dividend

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/utils"
	"golang.org/x/net/html"
)

const (
	// MinDocumentSize separates real pages from redirect stubs and error bodies.
	MinDocumentSize = 2000

	errorPageSize = 10000
	minCells      = 6
	amountSpan    = 7
	maxAmount     = 100
)

var (
	keywords = []string{"除息", "配息", "股利", "現金", "配發", "股息", "分配"}

	yearCell  = regexp.MustCompile(`^\d{4}$`)
	dateChars = regexp.MustCompile(`[^0-9/]`)
	numChars  = regexp.MustCompile(`[^0-9.\-]`)
)

// Result is what Parse found in one document.
type Result struct {
	Records []models.DividendRecord

	// Windows counts matched row windows across all tables, duplicates included.
	Windows int

	// TablesScanned counts tables that passed the keyword filter.
	TablesScanned int
}

type table struct {
	rows [][]string
	text strings.Builder

	inCell bool
	cell   strings.Builder
}

// Parse never fails; an unrecognised document yields an empty Result.
func Parse(symbol string, doc []byte) Result {
	var res Result
	if len(doc) < MinDocumentSize || isErrorPage(doc) {
		return res
	}

	for _, t := range extractTables(doc) {
		if !hasKeyword(t.text.String()) {
			continue
		}
		res.TablesScanned++

		var matched []models.DividendInput
		for _, row := range t.rows {
			if in, ok := matchRow(symbol, row); ok {
				matched = append(matched, in)
			}
		}
		res.Windows += len(matched)

		for _, in := range matched {
			in.Confidence = len(matched)
			res.Records = append(res.Records, models.NewDividendRecord(in))
		}
	}

	res.Records = models.DedupeDividends(res.Records)
	models.SortDividendsDesc(res.Records)
	return res
}

func isErrorPage(doc []byte) bool {
	if len(doc) >= errorPageSize {
		return false
	}
	return bytes.Contains(doc, []byte("404")) || bytes.Contains(doc, []byte("Not Found"))
}

func hasKeyword(text string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// extractTables walks the token stream once. Nested tables are returned
// separately; a cell's text belongs to the innermost open table.
func extractTables(doc []byte) []*table {
	var (
		done  []*table
		stack []*table
	)
	z := html.NewTokenizer(bytes.NewReader(doc))

	for {
		switch z.Next() {
		case html.ErrorToken:
			// Unclosed tables still count.
			for i := len(stack) - 1; i >= 0; i-- {
				stack[i].closeCell()
				done = append(done, stack[i])
			}
			return done

		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "table":
				stack = append(stack, &table{})
			case "tr":
				if len(stack) > 0 {
					top := stack[len(stack)-1]
					top.closeCell()
					top.rows = append(top.rows, nil)
				}
			case "td", "th":
				if len(stack) > 0 {
					top := stack[len(stack)-1]
					top.closeCell()
					if len(top.rows) == 0 {
						top.rows = append(top.rows, nil)
					}
					top.inCell = true
				}
			case "br":
				if len(stack) > 0 && stack[len(stack)-1].inCell {
					stack[len(stack)-1].cell.WriteByte(' ')
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "table":
				if len(stack) > 0 {
					top := stack[len(stack)-1]
					top.closeCell()
					stack = stack[:len(stack)-1]
					done = append(done, top)
				}
			case "td", "th", "tr":
				if len(stack) > 0 {
					stack[len(stack)-1].closeCell()
				}
			}

		case html.TextToken:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			text := string(z.Text())
			top.text.WriteString(text)
			if top.inCell {
				top.cell.WriteString(text)
			}
		}
	}
}

// Tables returns the cell grid of every table in doc. Inner tables come
// before the table enclosing them.
func Tables(doc []byte) [][][]string {
	tables := extractTables(doc)
	out := make([][][]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.rows)
	}
	return out
}

func (t *table) closeCell() {
	if !t.inCell {
		return
	}
	t.inCell = false
	last := len(t.rows) - 1
	t.rows[last] = append(t.rows[last], strings.Join(strings.Fields(t.cell.String()), " "))
	t.cell.Reset()
}

// matchRow slides a window over the row and returns the first match.
func matchRow(symbol string, cells []string) (models.DividendInput, bool) {
	if len(cells) < minCells {
		return models.DividendInput{}, false
	}

	for k := 0; k <= len(cells)-minCells; k++ {
		if !yearCell.MatchString(cells[k]) {
			continue
		}
		year, _ := strconv.Atoi(cells[k])

		exDate, ok := ParseDate(cells[k+2])
		if !ok || abs(exDate.Year()-year) > 1 {
			continue
		}

		amount, ok := findAmount(cells[k+3 : min(k+3+amountSpan, len(cells))])
		if !ok {
			continue
		}

		in := models.DividendInput{
			Symbol:         symbol,
			ExDividendDate: exDate,
			Year:           year,
			Cash:           amount,
			Source:         "GoodInfo",
		}
		if strings.Contains(strings.ToUpper(cells[k+1]), "Q") {
			in.Quarter = cells[k+1]
		} else if pay, ok := ParseDate(cells[k+1]); ok {
			in.PaymentDate = &pay
		}
		return in, true
	}
	return models.DividendInput{}, false
}

func findAmount(cells []string) (float64, bool) {
	for _, c := range cells {
		s := numChars.ReplaceAllString(c, "")
		if s == "" || s == "-" || s == "." {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		if v > 0 && v < maxAmount {
			return v, true
		}
	}
	return 0, false
}

// ParseDate reads YY/MM/DD or YYYY/MM/DD after dropping every character that
// is not a digit or slash. Two-digit years above 50 are 19xx.
func ParseDate(s string) (time.Time, bool) {
	parts := strings.Split(dateChars.ReplaceAllString(s, ""), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" || len(p) > 4 {
			return time.Time{}, false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	year, month, day := nums[0], nums[1], nums[2]
	switch len(parts[0]) {
	case 2:
		if year > 50 {
			year += 1900
		} else {
			year += 2000
		}
	case 4:
	default:
		return time.Time{}, false
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, utils.TaipeiLocation)
	// time.Date normalises 02/30 into March; reject those.
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
