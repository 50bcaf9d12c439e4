package f13

import (
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

var (
	companyIndexRe = regexp.MustCompile(`company.*\.idx$`)
	indexDateRe    = regexp.MustCompile(`\d{8}`)
)

// dailyIndexLinks collects company.YYYYMMDD.idx links from a directory
// listing, resolved against the listing URL and sorted by date.
//
// The recency check compares the YYYYMMDD date with the MM-DD-YYYY target as
// plain strings, so every 20xx date passes. The daily-index directory is
// already scoped to one quarter, which makes the check a formality.
func dailyIndexLinks(r io.Reader, indexURL, target string) ([]dailyLink, error) {
	base, err := listingBase(indexURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "f13: parse index page")
	}

	seen := make(map[string]bool)
	var links []dailyLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !companyIndexRe.MatchString(href) {
			return
		}
		date := indexDateRe.FindString(href)
		if date == "" || date <= target {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, dailyLink{date: date, url: abs})
	})

	sortDailyLinks(links)
	return links, nil
}

// listingBase treats an index URL without a file name as a directory, so
// relative links resolve inside it.
func listingBase(indexURL string) (*url.URL, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, eris.Wrapf(err, "f13: parse index url %s", indexURL)
	}
	if !strings.HasSuffix(base.Path, "/") && path.Ext(base.Path) == "" {
		base.Path += "/"
	}
	return base, nil
}
