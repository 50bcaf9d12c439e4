package f13

import (
	"context"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/fetcher"
)

// DefaultFeedURL lists the most recent 13F-HR submissions as Atom.
const DefaultFeedURL = "https://www.sec.gov/cgi-bin/browse-edgar?action=getcurrent&CIK=&type=13F-HR&output=atom"

// LatestFilingURLs reads the EDGAR current-filings feed and returns the
// full-text submission URL of each 13F-HR entry, newest first. The feed only
// carries the last few dozen filings.
func LatestFilingURLs(ctx context.Context, f fetcher.Fetcher, feedURL string) ([]string, error) {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	body, err := f.Download(ctx, feedURL)
	if err != nil {
		return nil, eris.Wrap(err, "f13: fetch latest feed")
	}
	defer body.Close() //nolint:errcheck

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, eris.Wrap(err, "f13: parse latest feed")
	}

	seen := make(map[string]bool)
	var urls []string
	for _, item := range feed.Items {
		if !isHoldingsReport(item) {
			continue
		}
		u := submissionURL(item.Link)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls, nil
}

// isHoldingsReport matches 13F-HR and 13F-HR/A entries by category or title.
func isHoldingsReport(item *gofeed.Item) bool {
	for _, c := range item.Categories {
		if strings.HasPrefix(c, formType) {
			return true
		}
	}
	return strings.HasPrefix(item.Title, formType)
}

// submissionURL converts a filing index page link to the full-text submission.
func submissionURL(link string) string {
	link = strings.TrimSpace(link)
	for _, suffix := range []string{"-index.htm", "-index.html"} {
		if strings.HasSuffix(link, suffix) {
			return strings.TrimSuffix(link, suffix) + filingExt
		}
	}
	if strings.HasSuffix(link, filingExt) {
		return link
	}
	return ""
}
