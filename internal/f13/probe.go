package f13

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Filers emit the information table either with an ns1: prefix or in the
// default namespace. The HTML parser keeps the prefix as part of the
// lower-cased tag name, so lookups try each spelling in order.
var (
	rowNames       = []string{"ns1:infotable", "infotable"}
	cusipNames     = []string{"ns1:cusip", "cusip"}
	amountTypeName = []string{"ns1:sshprnamttype", "sshprnamttype"}
	amountNames    = []string{"ns1:sshprnamt", "sshprnamt"}
	putCallNames   = []string{"ns1:putcall", "putcall"}
)

// findTag returns descendants of sel whose tag name equals name. Selectors
// cannot express prefixed names, so it matches on the node name directly.
func findTag(sel *goquery.Selection, name string) *goquery.Selection {
	return sel.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == name
	})
}

// probeAll returns the matches for the first name that has any.
func probeAll(sel *goquery.Selection, names ...string) *goquery.Selection {
	for _, name := range names {
		if found := findTag(sel, name); found.Length() > 0 {
			return found
		}
	}
	return sel.Slice(0, 0)
}

// probeText returns the trimmed text of the first element found by the
// ordered name probe.
func probeText(sel *goquery.Selection, names ...string) (string, bool) {
	found := probeAll(sel, names...)
	if found.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(found.First().Text()), true
}
