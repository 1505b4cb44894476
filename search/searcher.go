package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
)

// DefaultPageSize is the number of results returned per inline page.
const DefaultPageSize = 15

// Page is one page of inline search results.
type Page struct {
	Items []*core.MediaItem
	// Total counts every match, not just this page.
	Total  int
	Offset int
	// NextOffset is the offset of the following page, or "" on the last page.
	NextOffset string
}

// Empty reports whether the page has no results.
func (p *Page) Empty() bool {
	return len(p.Items) == 0
}

// Searcher pages through a user's media by description.
type Searcher struct {
	media    storage.MediaRepository
	pageSize int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPageSize sets the number of results per page.
// Default is DefaultPageSize.
func WithPageSize(size int) Option {
	return func(s *Searcher) error {
		if size <= 0 {
			return fmt.Errorf("page size must be positive, got %d", size)
		}
		s.pageSize = size
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(media storage.MediaRepository, opts ...Option) (*Searcher, error) {
	if media == nil {
		return nil, ErrMediaRepositoryRequired
	}

	s := &Searcher{
		media:    media,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// PageSize returns the number of results per page.
func (s *Searcher) PageSize() int {
	return s.pageSize
}

// Page returns the page of userID's media matching query that starts at offset.
// An empty offset is the first page.
func (s *Searcher) Page(ctx context.Context, userID core.UserID, query, offset string) (*Page, error) {
	return s.PageWithMonitor(ctx, userID, query, offset, nil)
}

// PageWithMonitor is Page with callbacks at each stage of the lookup.
func (s *Searcher) PageWithMonitor(ctx context.Context, userID core.UserID, query, offset string, monitor SearchMonitor) (*Page, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	start, err := ParseOffset(offset)
	if err != nil {
		return nil, err
	}
	monitor.Start(userID, query, start)

	terms := queryTerms(query)
	monitor.AfterQueryRefinement(terms)

	items, total, err := s.media.SearchByDescription(ctx, userID, strings.Join(terms, " "), s.pageSize, start)
	if err != nil {
		s.logger.Error("error searching media", "user_id", userID, "query", query, "offset", start, "err", err)
		return nil, err
	}
	monitor.AfterSearch(items, total)

	page := &Page{
		Items:      items,
		Total:      total,
		Offset:     start,
		NextOffset: NextOffset(start, s.pageSize, total),
	}
	if page.Items == nil {
		page.Items = []*core.MediaItem{}
	}
	monitor.Finish(page)

	s.logger.Debug("inline search", "user_id", userID, "terms", terms, "offset", start, "returned", len(items), "total", total)
	return page, nil
}

// ParseOffset parses an inline query offset. "" is zero.
func ParseOffset(offset string) (int, error) {
	if offset == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(offset)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, offset)
	}
	return n, nil
}

// NextOffset returns the offset of the page after the one at offset,
// or "" if that page would be past total.
func NextOffset(offset, pageSize, total int) string {
	next := offset + pageSize
	if next >= total {
		return ""
	}
	return strconv.Itoa(next)
}
