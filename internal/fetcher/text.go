package fetcher

import (
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// ReadAllUTF8 reads r fully and returns UTF-8 bytes. EDGAR documents are
// mostly ASCII, but older filer names carry Latin-1 bytes; anything that is
// not valid UTF-8 is decoded as Windows-1252.
func ReadAllUTF8(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: decode windows-1252")
	}
	return out, nil
}
