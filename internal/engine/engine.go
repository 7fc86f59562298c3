// Package engine runs the cosmetic filtering pipeline for one page: resolve
// the host, replay the page on a private virtual clock with an enforcer
// attached, and render the result.
package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bnema/cosmetic-filters/internal/dom"
	"github.com/bnema/cosmetic-filters/internal/enforcer"
	"github.com/bnema/cosmetic-filters/internal/eventloop"
	"github.com/bnema/cosmetic-filters/internal/logging"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/bnema/cosmetic-filters/internal/resolver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Recorder receives pipeline events. metrics.Metrics implements it.
type Recorder interface {
	enforcer.Recorder
	ObserveResolve(entries int, pageSpecific bool)
	ObservePage(d time.Duration)
}

// Engine filters pages against one resolver. It is safe for concurrent
// use; every page gets its own event loop.
type Engine struct {
	res         *resolver.Resolver
	log         logrus.FieldLogger
	rec         Recorder
	version     string
	headTimeout time.Duration
	loadDelay   time.Duration
}

// Option configures an Engine
type Option func(*Engine)

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

func WithRecorder(rec Recorder) Option {
	return func(e *Engine) { e.rec = rec }
}

// WithVersion overrides the version shown in the diagnostic tag
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// WithHeadTimeout caps the wait for <head>. Zero waits forever.
func WithHeadTimeout(d time.Duration) Option {
	return func(e *Engine) { e.headTimeout = d }
}

// WithLoadDelay sets how long after DOMContentLoaded the load event fires
func WithLoadDelay(d time.Duration) Option {
	return func(e *Engine) { e.loadDelay = d }
}

// New returns an engine resolving against res
func New(res *resolver.Resolver, opts ...Option) *Engine {
	e := &Engine{
		res:         res,
		log:         logging.Discard(),
		version:     res.Table().Version,
		headTimeout: enforcer.DefaultHeadTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadFile reads a rule table from fs and builds an engine over it
func LoadFile(fs afero.Fs, path string, log logrus.FieldLogger, opts ...Option) (*Engine, error) {
	table, err := resolver.LoadFile(fs, path)
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(table, resolver.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return New(res, append([]Option{WithLogger(log)}, opts...)...), nil
}

// Resolver returns the resolver the engine was built with
func (e *Engine) Resolver() *resolver.Resolver {
	return e.res
}

// Resolution is what applies to one host
type Resolution struct {
	Host     string                 `json:"host"`
	Entries  []models.ResolvedEntry `json:"entries"`
	Assembly enforcer.Assembly      `json:"assembly"`
}

// Resolve returns the entries and assembled CSS for host
func (e *Engine) Resolve(host string) Resolution {
	entries := e.res.Resolve(host)
	asm := enforcer.Assemble(entries)
	if e.rec != nil {
		e.rec.ObserveResolve(len(entries), asm.HasPageSpecific())
	}
	return Resolution{
		Host:     resolver.NormalizeHost(host),
		Entries:  entries,
		Assembly: asm,
	}
}

// Report describes one filtered page
type Report struct {
	Host    string         `json:"host"`
	Entries int            `json:"entries"`
	State   string         `json:"state"`
	Stats   enforcer.Stats `json:"stats"`
}

// Filter reads an HTML page for host from r, runs its whole lifecycle with
// the enforcer attached and writes the resulting document to w.
func (e *Engine) Filter(ctx context.Context, host string, r io.Reader, w io.Writer) (Report, error) {
	started := time.Now()
	res := e.Resolve(host)
	report := Report{Host: res.Host, Entries: len(res.Entries)}

	loop := eventloop.New(time.Time{})
	defer loop.Close()

	page, err := dom.OpenPage(r, loop)
	if err != nil {
		return report, err
	}

	table := e.res.Table()
	opts := []enforcer.Option{
		enforcer.WithLogger(logging.Engine(e.log, e.version, table.Variant()).WithField("host", res.Host)),
		enforcer.WithHeadTimeout(e.headTimeout),
	}
	if e.rec != nil {
		opts = append(opts, enforcer.WithRecorder(e.rec))
	}
	enf := enforcer.New(res.Entries, opts...)
	enf.Attach(page.Document(), loop)
	page.Replay(loop, e.loadDelay)

	if _, err := loop.RunUntilIdle(ctx); err != nil {
		enf.Close()
		return report, fmt.Errorf("filtering %s: %w", res.Host, err)
	}
	report.State = enf.State().String()
	report.Stats = enf.Stats()
	enf.Close()

	if err := page.Document().Render(w); err != nil {
		return report, fmt.Errorf("rendering %s: %w", res.Host, err)
	}
	if e.rec != nil {
		e.rec.ObservePage(time.Since(started))
	}
	return report, nil
}
