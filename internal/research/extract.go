package research

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"golang.org/x/net/html"
	"rsc.io/pdf"
)

type pageContent struct {
	Title       string
	Description string
	Text        string
}

// reduceBody turns a fetched response body into readable text based on its
// declared content type. HTML and PDF get real parsing; JSON is re-indented;
// any other text/* subtype passes through. Everything else is unsupported.
func reduceBody(contentType string, body []byte) (pageContent, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch {
	case mediaType == "" || strings.Contains(mediaType, "html") || mediaType == "application/xhtml+xml":
		return reduceHTML(body)
	case mediaType == "application/pdf":
		return reducePDF(body)
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return reduceJSON(body)
	case strings.HasPrefix(mediaType, "text/"):
		return pageContent{Text: collapseWhitespace(string(body))}, nil
	default:
		return pageContent{}, fmt.Errorf("no reader for content type %q", mediaType)
	}
}

func reduceHTML(body []byte) (pageContent, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return pageContent{}, err
	}

	var page pageContent
	var text strings.Builder
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "iframe", "svg":
				return
			case "head":
				inHead = true
			case "title":
				if page.Title == "" {
					page.Title = strings.TrimSpace(nodeText(n))
				}
				return
			case "meta":
				if inHead && page.Description == "" {
					name := strings.ToLower(attrValue(n, "name"))
					property := strings.ToLower(attrValue(n, "property"))
					if name == "description" || property == "og:description" {
						page.Description = strings.TrimSpace(attrValue(n, "content"))
					}
				}
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article":
				text.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode && !inHead {
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inHead)
		}
	}
	walk(doc, false)

	page.Text = collapseWhitespace(text.String())
	if page.Text == "" && page.Description == "" {
		return page, errors.New("page has no readable text")
	}
	return page, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String()
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

func reducePDF(body []byte) (page pageContent, err error) {
	// rsc.io/pdf panics on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return pageContent{}, err
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, chunk := range p.Content().Text {
			text.WriteString(chunk.S)
			text.WriteByte(' ')
		}
		text.WriteByte('\n')
	}

	page.Text = collapseWhitespace(text.String())
	if page.Text == "" {
		return page, errors.New("pdf has no extractable text")
	}
	return page, nil
}

func reduceJSON(body []byte) (pageContent, error) {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return pageContent{}, err
	}
	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return pageContent{}, err
	}
	return pageContent{Text: string(pretty)}, nil
}
