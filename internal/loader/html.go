package loader

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"hrag/internal/domain"
)

// HTMLParser handles HTML files. h1 and h2 start a new section page.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) ([]domain.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var s sections
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "head":
				return
			case "h1", "h2":
				if t := textContent(n); t != "" {
					s.startSection(t)
				}
				return
			case "h3", "h4", "h5", "h6", "p", "li", "td", "blockquote", "pre":
				if t := textContent(n); t != "" {
					s.add(t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return s.pages(), nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}
