package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// contentSelector lists the text-bearing elements kept from an HTML rendition.
const contentSelector = "h1,h2,h3,h4,p,li,figcaption,caption,pre,blockquote"

// HTMLExtractor extracts the main article text of an HTML paper rendition.
type HTMLExtractor struct {
	// BaseURL resolves relative links inside the document.
	BaseURL string
}

// Extract returns normalized article text. Readability distills the main
// content first; when it finds nothing the whole body is walked instead.
func (e HTMLExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pageURL, err := url.Parse(e.BaseURL)
	if err != nil || e.BaseURL == "" {
		pageURL = &url.URL{Scheme: "https", Host: "arxiv.org", Path: "/html/"}
	}

	var articleHTML string
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(content), pageURL)
	if err == nil {
		articleHTML = article.Content
	}
	if strings.TrimSpace(articleHTML) == "" {
		articleHTML = string(content)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script,style,nav,header,footer,math annotation").Remove()

	var blocks []string
	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		// Containers whose text is emitted by a nested block are skipped so
		// no passage appears twice.
		if s.Find(contentSelector).Length() > 0 {
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		blocks = append(blocks, doc.Find("body").Text())
	}

	return Normalize(strings.Join(blocks, "\n\n")), nil
}
