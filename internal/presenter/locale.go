package presenter

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale formats numbers and dates for the user's language.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// DetectLocale reads LC_ALL, then LC_NUMERIC, then LANG.
func DetectLocale() Locale {
	for _, env := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		if raw := os.Getenv(env); raw != "" {
			return NewLocale(raw)
		}
	}
	return NewLocale("")
}

// NewLocale accepts a POSIX locale ("de_DE.UTF-8") or a BCP 47 tag ("de-DE").
// Empty or unparseable input yields en-US.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	return Locale{tag: tag, printer: message.NewPrinter(tag)}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag { return l.tag }

// FormatNumber groups digits and limits fractions to two places.
func (l Locale) FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return l.printer.Sprint(number.Decimal(int64(v)))
	}
	return l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatPercent renders a 0..1 ratio as a whole percentage.
func (l Locale) FormatPercent(ratio float64) string {
	return l.printer.Sprint(number.Percent(ratio, number.MaxFractionDigits(0)))
}

// FormatDate formats t with the region's customary day/month order.
func (l Locale) FormatDate(t time.Time) string {
	region, _ := l.tag.Region()
	if layout, ok := dateLayouts[region.String()]; ok {
		return t.Format(layout)
	}
	base, _ := l.tag.Base()
	if layout, ok := dateLayoutsByLang[base.String()]; ok {
		return t.Format(layout)
	}
	return t.Format(layoutMDY)
}

const (
	layoutMDY    = "Jan 2, 2006"
	layoutDMY    = "2 Jan 2006"
	layoutYMD    = "2006-01-02"
	layoutDMYDot = "2. Jan 2006"
)

var dateLayouts = map[string]string{
	"US": layoutMDY,
	"GB": layoutDMY,
	"AU": layoutDMY,
	"IE": layoutDMY,
	"IN": layoutDMY,
	"FR": layoutDMY,
	"ES": layoutDMY,
	"IT": layoutDMY,
	"BR": layoutDMY,
	"NL": layoutDMY,
	"DE": layoutDMYDot,
	"AT": layoutDMYDot,
	"CH": layoutDMYDot,
	"JP": layoutYMD,
	"CN": layoutYMD,
	"KR": layoutYMD,
	"CA": layoutYMD,
}

var dateLayoutsByLang = map[string]string{
	"en": layoutMDY,
	"de": layoutDMYDot,
	"fr": layoutDMY,
	"es": layoutDMY,
	"it": layoutDMY,
	"pt": layoutDMY,
	"nl": layoutDMY,
	"ja": layoutYMD,
	"zh": layoutYMD,
	"ko": layoutYMD,
}
