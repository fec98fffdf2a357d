package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

var (
	isoDayPrefix  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// trendDateLayouts are tried in order after ordinals and commas are removed.
var trendDateLayouts = []string{
	"2006-01-02",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"2-Jan-2006",
	"2-January-2006",
	"2006-01",
	"January 2006",
	"Jan 2006",
}

// ParseTrendDate parses the human date formats seen in upstream history
// payloads ("4 February 2026", "3rd Feb, 2026", "2026-02", "2026-02-04")
// into a calendar day. Month-only inputs resolve to the first of the month.
func ParseTrendDate(raw string) (model.Date, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.Date{}, false
	}
	if iso := isoDayPrefix.FindString(s); iso != "" {
		s = iso
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", " ")
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")

	for _, layout := range trendDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.NewDate(t), true
		}
	}
	return model.Date{}, false
}
