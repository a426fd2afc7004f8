package rendering

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/russross/blackfriday"
)

var ErrUnknownExtension = errors.New("unknown markdown extension")

// DefaultExtensions is the extension set used when none is configured.
var DefaultExtensions = []string{"extra", "smarty", "tables", "autolink", "strikethrough"}

// Extensions holds the blackfriday parser and HTML renderer flags selected
// by name.
type Extensions struct {
	Parser int
	HTML   int
}

// Always on, whatever the selection.
const (
	baseParser = blackfriday.EXTENSION_NO_INTRA_EMPHASIS | blackfriday.EXTENSION_SPACE_HEADERS
	baseHTML   = blackfriday.HTML_USE_XHTML
)

var namedExtensions = map[string]Extensions{
	"tables":        {Parser: blackfriday.EXTENSION_TABLES},
	"fenced_code":   {Parser: blackfriday.EXTENSION_FENCED_CODE},
	"autolink":      {Parser: blackfriday.EXTENSION_AUTOLINK},
	"strikethrough": {Parser: blackfriday.EXTENSION_STRIKETHROUGH},
	"footnotes": {
		Parser: blackfriday.EXTENSION_FOOTNOTES,
		HTML:   blackfriday.HTML_FOOTNOTE_RETURN_LINKS,
	},
	"header_ids":       {Parser: blackfriday.EXTENSION_HEADER_IDS | blackfriday.EXTENSION_AUTO_HEADER_IDS},
	"definition_lists": {Parser: blackfriday.EXTENSION_DEFINITION_LISTS},
	"hard_line_break":  {Parser: blackfriday.EXTENSION_HARD_LINE_BREAK},
	"smarty": {
		HTML: blackfriday.HTML_USE_SMARTYPANTS |
			blackfriday.HTML_SMARTYPANTS_FRACTIONS |
			blackfriday.HTML_SMARTYPANTS_DASHES |
			blackfriday.HTML_SMARTYPANTS_LATEX_DASHES,
	},
}

func init() {
	// "extra" bundles the usual PHP Markdown Extra features.
	var extra Extensions
	for _, name := range []string{"tables", "fenced_code", "footnotes", "header_ids", "definition_lists"} {
		extra = extra.with(namedExtensions[name])
	}
	namedExtensions["extra"] = extra
}

func (e Extensions) with(other Extensions) Extensions {
	return Extensions{Parser: e.Parser | other.Parser, HTML: e.HTML | other.HTML}
}

// ParseExtensions resolves extension names, case-insensitively, into flags.
func ParseExtensions(names []string) (Extensions, error) {
	ext := Extensions{Parser: baseParser, HTML: baseHTML}
	for _, name := range names {
		named, ok := namedExtensions[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return Extensions{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownExtension, name, strings.Join(KnownExtensions(), ", "))
		}
		ext = ext.with(named)
	}
	return ext, nil
}

// KnownExtensions lists the accepted extension names.
func KnownExtensions() []string {
	names := make([]string, 0, len(namedExtensions))
	for name := range namedExtensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultExtensions() Extensions {
	ext, err := ParseExtensions(DefaultExtensions)
	if err != nil {
		panic(err)
	}
	return ext
}
