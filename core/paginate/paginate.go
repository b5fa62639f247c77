// Package paginate drives list operations across pages.
//
// A Pager holds the request for the next page and the undelivered records
// of the current one. It fetches only when the consumer asks for a record
// and the current page is used up, so abandoning iteration never costs an
// extra request. Continuation follows the RFC 5988 Link header with
// rel="next"; the locator is requested verbatim.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/tomnomnom/linkheader"

	"github.com/artpar/restschema/core/decode"
	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/ports"
)

// Doer executes one request. *exchange.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req ports.Request) (ports.Response, error)
}

// Options configures a Pager.
type Options struct {
	// ItemsKey names the page member holding records. Defaults to "items".
	ItemsKey string
	// Observer, if set, is told the size of each page.
	Observer ports.Observer
	// MaxEmptyPages bounds consecutive empty pages that still link onward.
	// Defaults to DefaultMaxEmptyPages.
	MaxEmptyPages int
}

// DefaultMaxEmptyPages is used when Options.MaxEmptyPages is not set.
const DefaultMaxEmptyPages = 10

// ErrNoProgress is returned when the platform keeps linking to further pages
// without delivering records.
var ErrNoProgress = errors.New("pagination made no progress")

// Pager is a lazy, forward-only sequence of records. It is owned by a
// single goroutine and cannot be restarted.
type Pager struct {
	doer   Doer
	schema *schema.ObjectSchema
	opts   Options

	next   *ports.Request
	buf    []decode.Record
	cur    decode.Record
	err    error
	pages  int
	empty  int
	closed bool
}

// New returns a Pager whose first page is fetched with first.
// Nothing is requested until the first call to Next.
func New(d Doer, s *schema.ObjectSchema, first ports.Request, opts Options) *Pager {
	return &Pager{
		doer:   d,
		schema: s,
		opts:   opts,
		next:   &first,
	}
}

// Next advances to the next record, fetching a page if needed.
// It returns false when the sequence is exhausted, closed or failed.
func (p *Pager) Next(ctx context.Context) bool {
	if p.closed || p.err != nil {
		return false
	}
	for len(p.buf) == 0 {
		if p.next == nil {
			return false
		}
		if err := p.fetch(ctx); err != nil {
			p.err = err
			p.next = nil
			return false
		}
	}
	p.cur, p.buf = p.buf[0], p.buf[1:]
	return true
}

func (p *Pager) fetch(ctx context.Context) error {
	req := *p.next
	resp, err := p.doer.Do(ctx, req)
	if err != nil {
		return err
	}

	records, err := decode.DecodePage(p.schema, resp.Body, p.opts.ItemsKey)
	if err != nil {
		return err
	}

	p.pages++
	if p.opts.Observer != nil {
		p.opts.Observer.ObservePage(p.schema.Name, len(records))
	}
	p.buf = records
	p.next = nextPage(req, resp.Headers)
	if len(records) > 0 || p.next == nil {
		p.empty = 0
		return nil
	}

	p.empty++
	if p.next.URL == req.URL {
		return fmt.Errorf("%w: empty page links to itself (%s)", ErrNoProgress, req.URL)
	}
	limit := p.opts.MaxEmptyPages
	if limit <= 0 {
		limit = DefaultMaxEmptyPages
	}
	if p.empty >= limit {
		return fmt.Errorf("%w: %d empty pages in a row", ErrNoProgress, p.empty)
	}
	return nil
}

// nextPage builds the follow-up request from the Link header, or returns
// nil on the last page.
func nextPage(prev ports.Request, headers http.Header) *ports.Request {
	values := headers.Values("Link")
	if len(values) == 0 {
		return nil
	}
	links := linkheader.Parse(strings.Join(values, ", ")).FilterByRel("next")
	if len(links) == 0 || links[0].URL == "" {
		return nil
	}
	return &ports.Request{
		Verb:     http.MethodGet,
		URL:      links[0].URL,
		Headers:  prev.Headers,
		Resource: prev.Resource,
		Method:   prev.Method,
	}
}

// Record returns the current record. Valid after Next returned true.
func (p *Pager) Record() decode.Record {
	return p.cur
}

// Err returns the error that stopped iteration, if any.
func (p *Pager) Err() error {
	return p.err
}

// Pages returns how many pages have been fetched so far.
func (p *Pager) Pages() int {
	return p.pages
}

// Close stops the sequence. Further calls to Next return false and issue
// no requests. Close is idempotent.
func (p *Pager) Close() error {
	p.closed = true
	p.next = nil
	p.buf = nil
	return nil
}

// All adapts the Pager to a range-over-func iterator. A failure is yielded
// once as the final element. Breaking out of the loop closes the Pager.
func (p *Pager) All(ctx context.Context) iter.Seq2[decode.Record, error] {
	return func(yield func(decode.Record, error) bool) {
		defer p.Close()
		for p.Next(ctx) {
			if !yield(p.Record(), nil) {
				return
			}
		}
		if err := p.Err(); err != nil {
			yield(decode.Record{}, err)
		}
	}
}

// Collect drains up to limit records, or all of them when limit <= 0.
// Records gathered before a failure are returned with the error.
func (p *Pager) Collect(ctx context.Context, limit int) ([]decode.Record, error) {
	var out []decode.Record
	for (limit <= 0 || len(out) < limit) && p.Next(ctx) {
		out = append(out, p.Record())
	}
	return out, p.Err()
}
