package dom

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/cosmetic-filters/internal/eventloop"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Timers schedules lifecycle steps
type Timers interface {
	AfterFunc(d time.Duration, fn func()) *eventloop.Timer
}

// Page is a parsed HTML page whose content has not been attached to its
// document yet. Replay attaches it the way a browser parser would.
type Page struct {
	doc      *Document
	children []*html.Node
}

// OpenPage parses an HTML page and returns it in its document-start state.
func OpenPage(r io.Reader, sched Scheduler) (*Page, error) {
	parsed, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	var root, doctype *html.Node
	for c := parsed.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.DoctypeNode && doctype == nil:
			doctype = c
		case c.Type == html.ElementNode && c.DataAtom == atom.Html:
			root = c
		}
	}
	if root == nil {
		return nil, errors.New("parsing page: no html element")
	}

	p := &Page{doc: NewDocument(sched, root.Attr...)}
	if doctype != nil {
		p.doc.setDoctype(doctype)
	}
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		root.RemoveChild(c)
		p.children = append(p.children, c)
		c = next
	}
	return p, nil
}

// Document returns the page's live document
func (p *Page) Document() *Document {
	return p.doc
}

// Replay schedules the page lifecycle: every top-level element is attached
// in its own task, then DOMContentLoaded fires, then load fires after
// loadDelay.
func (p *Page) Replay(sched Timers, loadDelay time.Duration) {
	for _, child := range p.children {
		sched.AfterFunc(0, func() { p.doc.AppendToRoot(child) })
	}
	p.children = nil

	sched.AfterFunc(0, func() { p.doc.Dispatch(DOMContentLoaded) })
	sched.AfterFunc(loadDelay, func() { p.doc.Dispatch(Load) })
}
