// ABOUTME: Paginated list controller for endpoints that return bare arrays
// ABOUTME: Totals are estimated from page fullness and exposed as exact, at-least or unknown

package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultSize is the page size used when none is configured.
const DefaultSize = 20

// ErrInvalidPage is returned by SetPage for pages below 1.
var ErrInvalidPage = errors.New("page must be at least 1")

// Query is the request of one page.
type Query struct {
	Page    int
	Size    int
	Keyword string
}

// Fetcher loads one page of items.
type Fetcher[T any] func(ctx context.Context, q Query) ([]T, error)

// TotalKind says how much is known about the total.
type TotalKind int

const (
	Unknown TotalKind = iota
	AtLeast
	Exact
)

func (k TotalKind) String() string {
	switch k {
	case AtLeast:
		return "at_least"
	case Exact:
		return "exact"
	default:
		return "unknown"
	}
}

// Total is an honest item count: exact, a lower bound, or unknown.
type Total struct {
	Kind TotalKind
	N    int
}

func (t Total) String() string {
	switch t.Kind {
	case Exact:
		return fmt.Sprintf("%d", t.N)
	case AtLeast:
		return fmt.Sprintf("%d+", t.N)
	default:
		return "?"
	}
}

// Estimate is the single-integer total heuristic: a full page implies at least
// one more item, otherwise the count of everything seen so far.
func Estimate(page, size, n int) int {
	if n >= size {
		return page*size + 1
	}
	return (page-1)*size + n
}

// TotalOf classifies the same heuristic as a Total.
func TotalOf(page, size, n int) Total {
	if n >= size {
		return Total{Kind: AtLeast, N: page*size + 1}
	}
	return Total{Kind: Exact, N: (page-1)*size + n}
}

// List holds the view state of one paginated list. It is safe for concurrent use.
type List[T any] struct {
	fetch Fetcher[T]

	mu      sync.Mutex
	page    int
	size    int
	keyword string
	items   []T
	loaded  bool
	total   Total
}

// New creates a list on page 1. A size below 1 uses DefaultSize.
func New[T any](fetch Fetcher[T], size int) *List[T] {
	if size < 1 {
		size = DefaultSize
	}
	return &List[T]{fetch: fetch, page: 1, size: size, items: []T{}}
}

// Load fetches the current page. On error the previous items stay in place.
func (l *List[T]) Load(ctx context.Context) error {
	return l.load(ctx, l.Query())
}

// load fetches q and only then makes it the current query, so a failed
// navigation leaves page, keyword, items and total describing the same page.
func (l *List[T]) load(ctx context.Context, q Query) error {
	items, err := l.fetch(ctx, q)
	if err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.page = q.Page
	l.keyword = q.Keyword
	l.items = items
	l.loaded = true
	l.total = TotalOf(q.Page, q.Size, len(items))
	return nil
}

// SetPage loads page p. The list stays on its current page if that fails.
func (l *List[T]) SetPage(ctx context.Context, p int) error {
	return l.SetQuery(ctx, l.Keyword(), p)
}

// SetKeyword filters by keyword starting from page 1.
func (l *List[T]) SetKeyword(ctx context.Context, kw string) error {
	return l.SetQuery(ctx, kw, 1)
}

// SetQuery loads page p of keyword kw with a single fetch.
func (l *List[T]) SetQuery(ctx context.Context, kw string, p int) error {
	if p < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, p)
	}
	q := l.Query()
	q.Keyword = kw
	q.Page = p
	return l.load(ctx, q)
}

// Next loads the following page when one may exist.
func (l *List[T]) Next(ctx context.Context) error {
	if !l.HasNext() {
		return nil
	}
	return l.SetPage(ctx, l.Page()+1)
}

// Prev loads the preceding page when there is one.
func (l *List[T]) Prev(ctx context.Context) error {
	if !l.HasPrev() {
		return nil
	}
	return l.SetPage(ctx, l.Page()-1)
}

// Query returns the query of the current page.
func (l *List[T]) Query() Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Query{Page: l.page, Size: l.size, Keyword: l.keyword}
}

func (l *List[T]) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

func (l *List[T]) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *List[T]) Keyword() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keyword
}

// Items returns a copy of the loaded items.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T{}, l.items...)
}

// Total is Unknown until the first successful load.
func (l *List[T]) Total() Total {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return Total{Kind: Unknown}
	}
	return l.total
}

// Estimate returns the legacy single-integer total, 0 before the first load.
func (l *List[T]) Estimate() int {
	return l.Total().N
}

// HasNext reports whether the last loaded page was full.
func (l *List[T]) HasNext() bool {
	return l.Total().Kind == AtLeast
}

func (l *List[T]) HasPrev() bool {
	return l.Page() > 1
}
