package modules

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"github.com/microcosm-cc/bluemonday"
)

// maxMarkupSize bounds the documents snippets may hand to the html module.
const maxMarkupSize = 10 << 20

// Policies are safe for concurrent use once built.
var ugcPolicy = bluemonday.UGCPolicy()

func htmlModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"select": func(src, selector string) ([]string, error) {
			doc, err := loadDocument(src)
			if err != nil {
				return nil, err
			}
			out := []string{}
			doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
				out = append(out, strings.TrimSpace(s.Text()))
			})
			return out, nil
		},
		"text": func(src string) (string, error) {
			doc, err := loadDocument(src)
			if err != nil {
				return "", err
			}
			return strings.Join(strings.Fields(doc.Text()), " "), nil
		},
		"links": func(src string) ([]string, error) {
			doc, err := loadDocument(src)
			if err != nil {
				return nil, err
			}
			out := []string{}
			doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				if href, ok := s.Attr("href"); ok {
					out = append(out, href)
				}
			})
			return out, nil
		},
		"xpath": func(src, expr string) ([]string, error) {
			if err := checkMarkup(src); err != nil {
				return nil, err
			}
			root, err := htmlquery.Parse(strings.NewReader(src))
			if err != nil {
				return nil, fmt.Errorf("HTML parse error: %w", err)
			}
			nodes, err := htmlquery.QueryAll(root, expr)
			if err != nil {
				return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
			}
			out := make([]string, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, strings.TrimSpace(htmlquery.InnerText(n)))
			}
			return out, nil
		},
		"sanitize": func(src string) (string, error) {
			if err := checkMarkup(src); err != nil {
				return "", err
			}
			return ugcPolicy.Sanitize(src), nil
		},
	}), nil
}

func checkMarkup(src string) error {
	if len(src) > maxMarkupSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", maxMarkupSize)
	}
	return nil
}

func loadDocument(src string) (*goquery.Document, error) {
	if err := checkMarkup(src); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("HTML parse error: %w", err)
	}
	return doc, nil
}
