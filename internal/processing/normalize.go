// Package processing turns raw captures into normalized dataset rows. It is
// fully offline: every transformation reads only what the raw store holds,
// so the dataset can be rebuilt at any time without touching the site.
package processing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// shortForms maps count suffixes as rendered on the site to their
// multipliers ("2.6M" votes, "1.2K" reviews).
var shortForms = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
	'T': 1e12,
}

var digitRunRe = regexp.MustCompile(`\d+`)

// parseCount parses a count that may carry a short-form suffix or thousands
// separators. Returns nil when the value is absent or unparseable.
func parseCount(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	mult := 1.0
	if m, ok := shortForms[s[len(s)-1]]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v *= mult
	return &v
}

// parseRating extracts the numeric rating from its "9.2/10" form.
func parseRating(s string) *float64 {
	head, _, _ := strings.Cut(s, "/")
	head = strings.TrimSpace(head)
	if head == "" {
		return nil
	}
	v, err := strconv.ParseFloat(head, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseMoney parses amounts like "$6,000,000 (estimated)". Currency symbol
// and qualifier are dropped.
func parseMoney(s string) *float64 {
	head, _, _ := strings.Cut(s, "(")
	head = strings.TrimSpace(head)
	head = strings.TrimLeft(head, "$€£¥")
	head = strings.ReplaceAll(head, ",", "")
	if head == "" {
		return nil
	}
	v, err := strconv.ParseFloat(head, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseRuntime converts the "2h 55m" technical-spec form to minutes.
func parseRuntime(s string) *float64 {
	compact := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if compact == "" {
		return nil
	}
	d, err := time.ParseDuration(compact)
	if err != nil {
		return nil
	}
	v := d.Minutes()
	return &v
}

// releaseDateLayouts covers the forms the details block renders.
var releaseDateLayouts = []string{
	"January 2, 2006",
	"January 2006",
	"2006",
}

// parseReleaseDate normalizes "March 24, 1972 (United States)" to an ISO
// date. Unparseable input yields the empty string.
func parseReleaseDate(s string) string {
	head, _, _ := strings.Cut(s, "(")
	head = strings.TrimSpace(head)
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, head); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// parseReviewDate normalizes the "14 June 2003" form of review timestamps.
func parseReviewDate(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2 January 2006", s); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

// splitHelpfulness reads the vote pair out of "1,234 out of 1,500 found this
// helpful." The first two digit runs are the upvotes and the total.
func splitHelpfulness(s string) (upvotes, total *int) {
	runs := digitRunRe.FindAllString(strings.ReplaceAll(s, ",", ""), 2)
	if len(runs) < 2 {
		return nil, nil
	}
	up, err1 := strconv.Atoi(runs[0])
	tot, err2 := strconv.Atoi(runs[1])
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &up, &tot
}

// pick returns the i-th element of a slice or "" past its end.
func pick(items []string, i int) string {
	if i < len(items) {
		return strings.TrimSpace(items[i])
	}
	return ""
}

// lastWord returns the final whitespace-separated token, which for a filming
// location is the country.
func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
