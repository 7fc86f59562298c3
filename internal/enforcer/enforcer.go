// Package enforcer applies resolved cosmetic rules to a live document: one
// stylesheet injection as soon as <head> exists, then forced inline hiding
// of page-specific matches at fixed checkpoints after DOMContentLoaded and
// load, to defeat pages that restyle elements after paint.
package enforcer

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bnema/cosmetic-filters/internal/dom"
	"github.com/bnema/cosmetic-filters/internal/eventloop"
	"github.com/bnema/cosmetic-filters/internal/logging"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultHeadTimeout caps the wait for <head>.
const DefaultHeadTimeout = 10 * time.Second

// Rescan checkpoints, relative to their lifecycle event
var (
	ContentLoadedRescans = []time.Duration{0, 1000 * time.Millisecond}
	LoadRescans          = []time.Duration{0, 500 * time.Millisecond, 1000 * time.Millisecond, 1500 * time.Millisecond, 2000 * time.Millisecond, 2500 * time.Millisecond}
)

// Document is the page the enforcer acts on
type Document interface {
	HasHead() bool
	InjectStyle(css string) error
	ObserveChildren(fn func()) (disconnect func())
	ForceStyle(m goquery.Matcher, style string) int
	AddEventListener(ev dom.Event, fn func())
}

// Scheduler runs delayed callbacks on the page's event loop
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) *eventloop.Timer
}

// Recorder receives enforcement events. metrics.Metrics implements it.
type Recorder interface {
	ObserveInjection(sheets int)
	ObserveScan(hidden int, skipped bool)
	ObserveHeadStall()
}

// State of the enforcer for one page load
type State int

const (
	StateIdle State = iota
	StateRulesResolved
	StateStyleInjected
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRulesResolved:
		return "rules-resolved"
	case StateStyleInjected:
		return "style-injected"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats counts what the enforcer did
type Stats struct {
	Stylesheets int  `json:"stylesheets"`
	Scans       int  `json:"scans"`
	Skipped     int  `json:"skippedScans"`
	Hidden      int  `json:"hiddenElements"`
	HeadStalled bool `json:"headStalled"`
}

// Enforcer applies one host's entries to one page
type Enforcer struct {
	asm         Assembly
	page        *ruleMatcher
	log         *logrus.Entry
	rec         Recorder
	headTimeout time.Duration

	state State
	stats Stats
	doc   Document
	sched Scheduler
}

// Option configures an Enforcer
type Option func(*Enforcer)

// WithLogger sets the diagnostic logger entry
func WithLogger(log *logrus.Entry) Option {
	return func(e *Enforcer) { e.log = log }
}

// WithRecorder reports enforcement events to rec
func WithRecorder(rec Recorder) Option {
	return func(e *Enforcer) { e.rec = rec }
}

// WithHeadTimeout caps the wait for <head>. Zero waits forever.
func WithHeadTimeout(d time.Duration) Option {
	return func(e *Enforcer) { e.headTimeout = d }
}

// New assembles the selectors for entries
func New(entries []models.ResolvedEntry, opts ...Option) *Enforcer {
	e := &Enforcer{
		asm:         Assemble(entries),
		headTimeout: DefaultHeadTimeout,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Engine(nil, "", models.VariantFull)
	}

	if e.asm.HasPageSpecific() {
		hide, rejected := compileSelectors(e.asm.PageSelectors)
		for _, sel := range rejected {
			e.log.WithField("selector", sel).Debug("skipping selector the scanner cannot match")
		}
		except, rejectedExceptions := compileSelectors(e.asm.Exceptions)
		if len(rejectedExceptions) == 0 {
			e.page = &ruleMatcher{hide: hide, except: except}
		} else {
			// Without every exception the scan could hide protected elements.
			for _, sel := range rejectedExceptions {
				e.log.WithField("selector", sel).Warn("scanner cannot match exception, page-specific scans disabled")
			}
		}
	}

	e.log.Debugf("page specific selectors: %s", e.asm.PageSpecificSelector)
	e.state = StateRulesResolved
	return e
}

// Assembly returns the assembled selectors and CSS
func (e *Enforcer) Assembly() Assembly { return e.asm }

// State returns the current lifecycle state
func (e *Enforcer) State() State { return e.state }

// Stats returns what the enforcer has done so far
func (e *Enforcer) Stats() Stats { return e.stats }

// Attach wires the enforcer to a document at document start. It must be
// called from the loop that runs sched.
func (e *Enforcer) Attach(doc Document, sched Scheduler) {
	e.doc = doc
	e.sched = sched

	doc.AddEventListener(dom.DOMContentLoaded, func() {
		e.scheduleScans("DOMContentLoaded", ContentLoadedRescans)
	})
	doc.AddEventListener(dom.Load, func() {
		e.scheduleScans("load", LoadRescans)
	})

	e.waitForHead()
}

// Close moves the enforcer to its terminal state. Pending scans do nothing.
func (e *Enforcer) Close() {
	e.state = StateTerminal
}

func (e *Enforcer) waitForHead() {
	if e.doc.HasHead() {
		e.inject()
		return
	}

	var disconnect func()
	disconnect = e.doc.ObserveChildren(func() {
		if !e.doc.HasHead() || e.state != StateRulesResolved {
			return
		}
		disconnect()
		e.inject()
	})

	if e.headTimeout <= 0 {
		return
	}
	e.sched.AfterFunc(e.headTimeout, func() {
		if e.state != StateRulesResolved {
			return
		}
		disconnect()
		e.stats.HeadStalled = true
		if e.rec != nil {
			e.rec.ObserveHeadStall()
		}
		e.log.Warnf("no head element after %s, styles not injected", e.headTimeout)
	})
}

func (e *Enforcer) inject() {
	sheets := 0
	if err := e.doc.InjectStyle(e.asm.CombinedHideSelector); err != nil {
		e.log.WithError(err).Warn("injecting combined style")
		return
	}
	sheets++
	e.log.Debug("injected combined style")

	css, err := e.asm.StrippedInjectionCSS()
	if err != nil {
		e.log.WithError(err).Warn("invalid injection exception pattern, injecting CSS unfiltered")
	}
	e.log.Debugf("injection string after exception: %s", css)
	if css != "" {
		if err := e.doc.InjectStyle(css); err != nil {
			e.log.WithError(err).Warn("injecting additional styles")
		} else {
			sheets++
			e.log.Debug("also injected additional styles")
		}
	}

	e.stats.Stylesheets += sheets
	e.state = StateStyleInjected
	if e.rec != nil {
		e.rec.ObserveInjection(sheets)
	}
}

func (e *Enforcer) scheduleScans(event string, offsets []time.Duration) {
	for _, offset := range offsets {
		reason := event
		if offset > 0 {
			reason = fmt.Sprintf("%s + %dms", event, offset.Milliseconds())
		}
		if offset == 0 {
			e.scan(reason)
			continue
		}
		e.sched.AfterFunc(offset, func() { e.scan(reason) })
	}
}

// scan forces the hidden style onto page-specific matches. Re-running it
// is harmless.
func (e *Enforcer) scan(reason string) {
	if e.state == StateTerminal {
		return
	}
	if e.page == nil {
		e.stats.Skipped++
		if e.rec != nil {
			e.rec.ObserveScan(0, true)
		}
		return
	}

	hidden := e.doc.ForceStyle(e.page, HiddenStyle)
	e.stats.Scans++
	e.stats.Hidden += hidden
	if e.rec != nil {
		e.rec.ObserveScan(hidden, false)
	}
	e.log.WithField("reason", reason).Debugf("tried hiding %d page-specific elements", hidden)
}
