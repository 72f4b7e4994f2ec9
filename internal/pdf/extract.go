package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when the PDF structure cannot be parsed.
var ErrUnreadable = errors.New("pdf: unreadable document")

// ExtractText returns the plain text of content, one page after another,
// separated by blank lines. maxPages <= 0 reads every page. Pages that fail to
// decode are skipped; a document where every page fails yields empty text.
func ExtractText(content []byte, maxPages int) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	pages := reader.NumPage()
	if maxPages > 0 && maxPages < pages {
		pages = maxPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}

	return b.String(), nil
}
