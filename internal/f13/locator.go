package f13

import (
	"bufio"
	"io"
	"strings"
)

const (
	formType    = "13F-HR"
	dataPathSep = "edgar/data/"
	filingExt   = ".txt"
)

// FilingURLs scans a company.idx daily index and returns the absolute URL of
// every 13F-HR filing, in document order. Amendments (13F-HR/A) match as well.
func FilingURLs(archiveRoot string, r io.Reader) []string {
	root := strings.TrimRight(archiveRoot, "/")

	var urls []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, formType) || !strings.Contains(line, filingExt) {
			continue
		}
		path := line
		if i := strings.LastIndex(path, dataPathSep); i >= 0 {
			path = path[i+len(dataPathSep):]
		}
		path, _, _ = strings.Cut(path, filingExt)
		urls = append(urls, root+"/"+dataPathSep+strings.TrimSpace(path)+filingExt)
	}
	return urls
}
