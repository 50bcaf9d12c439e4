package f13

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyIndexLinks_Fixture(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "index.html"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	links, err := dailyIndexLinks(f, "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/index.html", "12-31-2024")
	require.NoError(t, err)

	assert.Equal(t, []dailyLink{
		{date: "20250102", url: "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/company.20250102.idx"},
		{date: "20250103", url: "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/company.20250103.idx"},
	}, links)
}

func TestDailyIndexLinks_DirectoryWithoutSlash(t *testing.T) {
	page := `<a href="company.20250401.idx">x</a>`
	links, err := dailyIndexLinks(strings.NewReader(page), "http://archive.test/edgar/daily-index/2025/QTR2", "03-31-2025")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "http://archive.test/edgar/daily-index/2025/QTR2/company.20250401.idx", links[0].url)
}

func TestDailyIndexLinks_AbsoluteHref(t *testing.T) {
	page := `<a href="/Archives/edgar/daily-index/2025/QTR1/company.20250110.idx">x</a>`
	links, err := dailyIndexLinks(strings.NewReader(page), "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/", "12-31-2024")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/company.20250110.idx", links[0].url)
}

func TestDailyIndexLinks_RecencyFilterIsLexicographic(t *testing.T) {
	// Dates compare against "12-31-2024" byte by byte: 10000101 loses at the
	// second byte, 19991231 wins there, and any 20xx date wins at the first.
	page := `<a href="company.19991231.idx">old</a><a href="company.10000101.idx">older</a><a href="company.20240101.idx">x</a>`
	links, err := dailyIndexLinks(strings.NewReader(page), "http://archive.test/idx/", "12-31-2024")
	require.NoError(t, err)

	var dates []string
	for _, l := range links {
		dates = append(dates, l.date)
	}
	assert.Equal(t, []string{"19991231", "20240101"}, dates)
}

func TestDailyIndexLinks_InvalidURL(t *testing.T) {
	_, err := dailyIndexLinks(strings.NewReader(""), "://bad", "12-31-2024")
	assert.Error(t, err)
}

func TestSortDailyLinks_Stable(t *testing.T) {
	links := []dailyLink{
		{date: "20250103", url: "c"},
		{date: "20250102", url: "a"},
		{date: "20250102", url: "b"},
	}
	sortDailyLinks(links)
	assert.Equal(t, []string{"a", "b", "c"}, []string{links[0].url, links[1].url, links[2].url})
}
