// Package dom is the page environment the enforcer acts on: an HTML tree
// with root child observation, lifecycle events and style injection,
// queried through goquery.
package dom

import (
	"errors"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoHead is returned when a stylesheet is injected before <head> exists.
var ErrNoHead = errors.New("document has no head element")

// Event is a page lifecycle signal
type Event string

const (
	DOMContentLoaded Event = "DOMContentLoaded"
	Load             Event = "load"
)

// Scheduler queues mutation notifications. They must run after the
// mutating task, ahead of any timer.
type Scheduler interface {
	Microtask(fn func())
}

type observer struct {
	fn        func()
	pending   bool
	connected bool
}

// Document is a live HTML document
type Document struct {
	doc       *goquery.Document
	root      *html.Node
	sched     Scheduler
	observers []*observer
	listeners map[Event][]func()
}

// NewDocument returns a document in its document-start state: an <html>
// element without children.
func NewDocument(sched Scheduler, attrs ...html.Attribute) *Document {
	docNode := &html.Node{Type: html.DocumentNode}
	root := &html.Node{
		Type:     html.ElementNode,
		Data:     "html",
		DataAtom: atom.Html,
		Attr:     attrs,
	}
	docNode.AppendChild(root)

	return &Document{
		doc:       goquery.NewDocumentFromNode(docNode),
		root:      root,
		sched:     sched,
		listeners: make(map[Event][]func()),
	}
}

// setDoctype places a copy of dt ahead of the root element.
func (d *Document) setDoctype(dt *html.Node) {
	d.root.Parent.InsertBefore(&html.Node{
		Type: html.DoctypeNode,
		Data: dt.Data,
		Attr: append([]html.Attribute(nil), dt.Attr...),
	}, d.root)
}

// Selection returns the whole document for querying
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// Root returns the <html> element
func (d *Document) Root() *html.Node {
	return d.root
}

// HasHead reports whether <head> is attached to the root
func (d *Document) HasHead() bool {
	return d.head() != nil
}

func (d *Document) head() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Head {
			return c
		}
	}
	return nil
}

// AppendToRoot attaches n as the last child of <html> and notifies
// observers.
func (d *Document) AppendToRoot(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	d.root.AppendChild(n)
	d.notify()
}

// ObserveChildren calls fn after every task that changed the root's
// direct children. The returned function disconnects the observer.
func (d *Document) ObserveChildren(fn func()) (disconnect func()) {
	obs := &observer{fn: fn, connected: true}
	d.observers = append(d.observers, obs)

	return func() {
		obs.connected = false
		for i, o := range d.observers {
			if o == obs {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				break
			}
		}
	}
}

func (d *Document) notify() {
	for _, obs := range d.observers {
		if obs.pending {
			continue
		}
		obs.pending = true
		d.sched.Microtask(func() {
			obs.pending = false
			if obs.connected {
				obs.fn()
			}
		})
	}
}

// InjectStyle appends a <style> element holding css to <head>.
func (d *Document) InjectStyle(css string) error {
	head := d.head()
	if head == nil {
		return ErrNoHead
	}

	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "type", Val: "text/css"}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	d.doc.Selection.FindNodes(head).AppendNodes(style)
	return nil
}

// ForceStyle replaces the whole style attribute of every element matched
// by m and returns how many were touched.
func (d *Document) ForceStyle(m goquery.Matcher, style string) int {
	sel := d.doc.Selection.FindMatcher(m)
	sel.SetAttr("style", style)
	return sel.Length()
}

// AddEventListener registers fn for a lifecycle event
func (d *Document) AddEventListener(ev Event, fn func()) {
	d.listeners[ev] = append(d.listeners[ev], fn)
}

// Dispatch calls the listeners of ev synchronously, in registration order
func (d *Document) Dispatch(ev Event) {
	for _, fn := range append([]func(){}, d.listeners[ev]...) {
		fn()
	}
}

// Render writes the document as HTML
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.doc.Get(0))
}
