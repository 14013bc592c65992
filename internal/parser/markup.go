package parser

import (
	"bytes"
	"github.com/PuerkitoBio/goquery"
)

// Node represents a single element of a parsed markup document that may be queried using CSS selectors
type Node interface {
	// Find returns all descendants of the node matching the given selector in document order
	Find(selector string) []Node

	// Text returns the combined text contents of the node and its descendants
	Text() string
}

// Loader parses raw markup into its document root
type Loader func(raw []byte) (Node, error)

// GoqueryLoader parses raw HTML using goquery
func GoqueryLoader(raw []byte) (Node, error) {
	document, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &goqueryNode{selection: document.Selection}, nil
}

type goqueryNode struct {
	selection *goquery.Selection
}

func (node *goqueryNode) Find(selector string) []Node {
	found := node.selection.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, selection *goquery.Selection) {
		nodes = append(nodes, &goqueryNode{selection: selection})
	})
	return nodes
}

func (node *goqueryNode) Text() string {
	return node.selection.Text()
}
