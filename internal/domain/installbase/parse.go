package installbase

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order.  Month-first slash dates win over
// day-first ones because the source extracts use US locale.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Spreadsheet exports sometimes carry dates as serial day numbers counted
// from 1899-12-30.  Values outside this window are not treated as dates.
const (
	minSerialDate = 20000 // 1954-10-03
	maxSerialDate = 80000 // 2119-01-10
)

var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a source date.  Blank values and sentinels yield
// (nil, true).  A non-blank value in no known layout yields (nil, false) and
// the caller records an UnparsableValue issue.
func ParseDate(raw string) (*time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || IsSentinel(s) {
		return nil, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minSerialDate && f <= maxSerialDate {
		d := serialEpoch.AddDate(0, 0, int(math.Floor(f)))
		return &d, true
	}
	return nil, false
}

// ParseNumber parses a numeric source field, tolerating currency symbols,
// thousands separators and a trailing k/m multiplier.  Blank values and
// sentinels other than "0" yield (nil, true); anything else that does not
// parse yields (nil, false).
func ParseNumber(raw string) (*float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || (s != "0" && IsSentinel(s)) {
		return nil, true
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1e3, s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		mult, s = 1e6, s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	f *= mult
	return &f, true
}

// DaysBetween returns the whole days from "from" to "to", counted on UTC
// calendar dates.  The result is negative when "to" is before "from".
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// SizeCategory is the discrete project-size band used for account sizing.
type SizeCategory int

const (
	SizeUnknown SizeCategory = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeEnterprise
)

func (c SizeCategory) String() string {
	switch c {
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	case SizeLarge:
		return "large"
	case SizeEnterprise:
		return "enterprise"
	}
	return "unknown"
}

var sizeWords = map[string]SizeCategory{
	"s": SizeSmall, "sm": SizeSmall, "small": SizeSmall,
	"m": SizeMedium, "med": SizeMedium, "medium": SizeMedium,
	"l": SizeLarge, "lg": SizeLarge, "large": SizeLarge,
	"xl": SizeEnterprise, "very large": SizeEnterprise, "extra large": SizeEnterprise,
	"enterprise": SizeEnterprise, "strategic": SizeEnterprise,
}

// Numeric project sizes are banded on these upper bounds.
const (
	smallProjectLimit  = 50_000
	mediumProjectLimit = 250_000
	largeProjectLimit  = 1_000_000
)

// ParseSizeCategory maps the free-text project size field onto a band.
// Recognised words ("Small", "L", "Enterprise"), "Tier N" labels (tier 1 is
// the largest) and plain numbers are accepted; placeholders and anything
// else yield (SizeUnknown, false).
func ParseSizeCategory(raw string) (SizeCategory, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || IsSentinel(s) {
		return SizeUnknown, false
	}
	if c, ok := sizeWords[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "tier") {
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(s, "tier")))
		if err == nil && n >= 1 && n <= 4 {
			return SizeCategory(5 - n), true
		}
		return SizeUnknown, false
	}
	if f, ok := ParseNumber(s); ok && f != nil && *f > 0 {
		switch {
		case *f < smallProjectLimit:
			return SizeSmall, true
		case *f < mediumProjectLimit:
			return SizeMedium, true
		case *f < largeProjectLimit:
			return SizeLarge, true
		default:
			return SizeEnterprise, true
		}
	}
	return SizeUnknown, false
}
