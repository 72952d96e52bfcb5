package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FiscalYear returns the Nepali fiscal year containing t, e.g. "2025/26".
// The year turns over in mid-July; July and later belong to the next pair.
func FiscalYear(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.July {
		return fmt.Sprintf("%d/%02d", year, (year+1)%100)
	}
	return fmt.Sprintf("%d/%02d", year-1, year%100)
}

// FormatRupees renders an amount as "Rs. 1,23,456" using Indian digit
// grouping. Fractional amounts keep two decimals.
func FormatRupees(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	frac := d.Sub(whole)

	digits := whole.String()
	grouped := digits
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(append(parts, tail), ",")
	}
	if !frac.IsZero() {
		grouped += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return "Rs. " + sign + grouped
}

// monthWindow returns [first instant of t's month, first instant of the next).
func monthWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// SummaryKey is the document id of a monthly summary.
func SummaryKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
