package exchangerates

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

const (
	headerLines = 2
	fieldCount  = 5
)

var supported = func() map[domain.CurrencyCode]struct{} {
	set := make(map[domain.CurrencyCode]struct{}, len(domain.SupportedCurrencies))
	for _, code := range domain.SupportedCurrencies {
		unit := currency.MustParseISO(string(code))
		set[domain.CurrencyCode(unit.String())] = struct{}{}
	}
	return set
}()

// ParseTable reads the pipe-delimited daily rate list. The first two lines are the date
// header and column names. Each remaining row is country|name|amount|code|rate with a
// decimal comma; the stored value is rate divided by amount. Rows that cannot be used
// are skipped.
func ParseTable(r io.Reader) (map[domain.CurrencyCode]float64, error) {
	rates := make(map[domain.CurrencyCode]float64, len(supported))

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if line <= headerLines {
			continue
		}
		code, rate, ok := parseRow(scanner.Text())
		if !ok {
			continue
		}
		rates[code] = rate
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("exchangerates: read payload: %w", err)
	}
	if len(rates) == 0 {
		return nil, ErrNoUsableRates
	}
	return rates, nil
}

func parseRow(raw string) (domain.CurrencyCode, float64, bool) {
	fields := strings.Split(strings.TrimSpace(raw), "|")
	if len(fields) < fieldCount {
		return "", 0, false
	}

	unit, err := currency.ParseISO(strings.TrimSpace(fields[3]))
	if err != nil {
		return "", 0, false
	}
	code := domain.CurrencyCode(unit.String())
	if _, ok := supported[code]; !ok {
		return "", 0, false
	}

	amount, ok := parseNumber(fields[2])
	if !ok || !amount.IsPositive() {
		return "", 0, false
	}
	rate, ok := parseNumber(fields[4])
	if !ok || !rate.IsPositive() {
		return "", 0, false
	}

	return code, rate.Div(amount).InexactFloat64(), true
}

func parseNumber(raw string) (decimal.Decimal, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if normalized == "" {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
