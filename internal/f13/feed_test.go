package f13

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-cli/internal/fetcher/mocks"
)

func TestLatestFilingURLs(t *testing.T) {
	f := mocks.NewMockFetcher(t)
	f.EXPECT().Download(mock.Anything, "http://feed").RunAndReturn(serveFixture(t, "latest.atom")).Once()

	urls, err := LatestFilingURLs(context.Background(), f, "http://feed")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.sec.gov/Archives/edgar/data/1234567/000123456725000001/0001234567-25-000001.txt",
		"https://www.sec.gov/Archives/edgar/data/3333333/000333333325000004/0003333333-25-000004.txt",
	}, urls)
}

func TestLatestFilingURLs_DefaultFeed(t *testing.T) {
	f := mocks.NewMockFetcher(t)
	f.EXPECT().Download(mock.Anything, DefaultFeedURL).Return(nil, errors.New("offline")).Once()

	_, err := LatestFilingURLs(context.Background(), f, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch latest feed")
}

func TestLatestFilingURLs_NotAFeed(t *testing.T) {
	f := mocks.NewMockFetcher(t)
	f.EXPECT().Download(mock.Anything, "http://feed").
		Return(io.NopCloser(strings.NewReader("not a feed")), nil).Once()

	_, err := LatestFilingURLs(context.Background(), f, "http://feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse latest feed")
}

func TestSubmissionURL(t *testing.T) {
	assert.Equal(t, "https://x/a/0001-25-1.txt", submissionURL("https://x/a/0001-25-1-index.htm"))
	assert.Equal(t, "https://x/a/0001-25-1.txt", submissionURL("https://x/a/0001-25-1-index.html"))
	assert.Equal(t, "https://x/a/0001-25-1.txt", submissionURL("https://x/a/0001-25-1.txt"))
	assert.Empty(t, submissionURL("https://x/a/primary_doc.xml"))
}
