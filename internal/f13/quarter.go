// Package f13 crawls SEC EDGAR daily indexes for 13F-HR filings, parses each
// filing's information table and persists per-ticker share totals.
package f13

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// QuarterLayout is the MM-DD-YYYY form used for target quarters and
// periodOfReport values.
const QuarterLayout = "01-02-2006"

// ErrInvalidQuarterFormat is returned for strings that are not a calendar
// quarter end in MM-DD-YYYY form.
var ErrInvalidQuarterFormat = eris.New("f13: invalid quarter format")

var quarterEndRe = regexp.MustCompile(`^(03-31|06-30|09-30|12-31)-\d{4}$`)

var quarterByMonth = map[string]string{"03": "Q1", "06": "Q2", "09": "Q3", "12": "Q4"}

// CurrentQuarter returns the most recently completed quarter end as of now.
func CurrentQuarter(now time.Time) string {
	year := now.Year()
	switch month := now.Month(); {
	case month <= time.March:
		return fmt.Sprintf("12-31-%d", year-1)
	case month <= time.June:
		return fmt.Sprintf("03-31-%d", year)
	case month <= time.September:
		return fmt.Sprintf("06-30-%d", year)
	default:
		return fmt.Sprintf("09-30-%d", year)
	}
}

// ValidQuarterEnd reports whether s is exactly one of 03-31, 06-30, 09-30 or
// 12-31 followed by a four digit year.
func ValidQuarterEnd(s string) bool {
	return quarterEndRe.MatchString(s)
}

// QuarterLabel converts a quarter end such as 12-31-2024 to Q4-2024.
func QuarterLabel(s string) (string, error) {
	if !ValidQuarterEnd(s) {
		return "", eris.Wrapf(ErrInvalidQuarterFormat, "f13: quarter label for %q", s)
	}
	parts := strings.Split(s, "-")
	return quarterByMonth[parts[0]] + "-" + parts[2], nil
}

// ParseQuarterEnd returns the quarter end as a UTC date.
func ParseQuarterEnd(s string) (time.Time, error) {
	if !ValidQuarterEnd(s) {
		return time.Time{}, eris.Wrapf(ErrInvalidQuarterFormat, "f13: parse quarter %q", s)
	}
	t, err := time.Parse(QuarterLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "f13: parse quarter %q", s)
	}
	return t, nil
}

// QuarterIndexURL returns the daily-index directory holding filings for the
// target quarter. Filings for a quarter end are made during the following
// calendar quarter, so 12-31-2024 maps to daily-index/2025/QTR1/.
func QuarterIndexURL(archiveRoot, target string) (string, error) {
	if !ValidQuarterEnd(target) {
		return "", eris.Wrapf(ErrInvalidQuarterFormat, "f13: index url for %q", target)
	}
	month, _ := strconv.Atoi(target[:2])
	year, _ := strconv.Atoi(target[6:])

	qtr := month/3 + 1
	if qtr > 4 {
		qtr = 1
		year++
	}
	return fmt.Sprintf("%s/edgar/daily-index/%d/QTR%d/", strings.TrimRight(archiveRoot, "/"), year, qtr), nil
}
