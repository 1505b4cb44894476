package search

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepositories(t *testing.T) *sqlite.Repositories {
	t.Helper()
	repos, err := sqlite.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func addItems(t *testing.T, repos *sqlite.Repositories, userID core.UserID, descriptions ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := repos.Users.AddUser(ctx, &core.User{ID: userID, Username: fmt.Sprintf("user%d", userID)})
	require.NoError(t, err)
	for i, desc := range descriptions {
		added, _, err := repos.Media.AddMedia(ctx, &core.MediaItem{
			UserID:      userID,
			Type:        core.MediaTypePhoto,
			FileID:      fmt.Sprintf("file-%d-%d", userID, i),
			Description: desc,
		})
		require.NoError(t, err)
		require.True(t, added)
	}
}

func TestNewSearcher(t *testing.T) {
	repos := newTestRepositories(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(repos.Media)
		require.NoError(t, err)
		assert.Equal(t, DefaultPageSize, searcher.PageSize())
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(repos.Media, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(repos.Media, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher.logger)
	})

	t.Run("with page size", func(t *testing.T) {
		searcher, err := NewSearcher(repos.Media, WithPageSize(5))
		require.NoError(t, err)
		assert.Equal(t, 5, searcher.PageSize())
	})

	t.Run("non-positive page size", func(t *testing.T) {
		_, err := NewSearcher(repos.Media, WithPageSize(0))
		assert.Error(t, err)
	})

	t.Run("nil media repository", func(t *testing.T) {
		_, err := NewSearcher(nil)
		assert.Equal(t, ErrMediaRepositoryRequired, err)
	})
}

func TestPage_EmptyDatabase(t *testing.T) {
	repos := newTestRepositories(t)
	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	page, err := searcher.Page(context.Background(), 42, "cat", "")
	require.NoError(t, err)
	assert.True(t, page.Empty())
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, "", page.NextOffset)
}

func TestPage_Pagination(t *testing.T) {
	repos := newTestRepositories(t)
	descriptions := make([]string, 20)
	for i := range descriptions {
		descriptions[i] = fmt.Sprintf("cat number %d", i)
	}
	addItems(t, repos, 1, descriptions...)

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := searcher.Page(ctx, 1, "cat", "")
	require.NoError(t, err)
	assert.Len(t, first.Items, 15)
	assert.Equal(t, 20, first.Total)
	assert.Equal(t, "15", first.NextOffset)

	second, err := searcher.Page(ctx, 1, "cat", first.NextOffset)
	require.NoError(t, err)
	assert.Len(t, second.Items, 5)
	assert.Equal(t, 15, second.Offset)
	assert.Equal(t, "", second.NextOffset)

	seen := make(map[core.MediaID]bool)
	for _, item := range append(first.Items, second.Items...) {
		assert.False(t, seen[item.MediaID], "media %d returned twice", item.MediaID)
		seen[item.MediaID] = true
	}
	assert.Len(t, seen, 20)
}

func TestPage_ExactlyOnePage(t *testing.T) {
	repos := newTestRepositories(t)
	descriptions := make([]string, 15)
	for i := range descriptions {
		descriptions[i] = fmt.Sprintf("dog %d", i)
	}
	addItems(t, repos, 1, descriptions...)

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	page, err := searcher.Page(context.Background(), 1, "dog", "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 15)
	assert.Equal(t, "", page.NextOffset)
}

func TestPage_EmptyQueryListsEverything(t *testing.T) {
	repos := newTestRepositories(t)
	addItems(t, repos, 1, "red dog", "blue cat", "green frog")

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	page, err := searcher.Page(context.Background(), 1, "", "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, "red dog", page.Items[0].Description)
}

func TestPage_PrefixTerms(t *testing.T) {
	repos := newTestRepositories(t)
	addItems(t, repos, 1, "red dog", "blue cat", "green frog")

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	page, err := searcher.Page(context.Background(), 1, "red fro", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	descs := []string{page.Items[0].Description, page.Items[1].Description}
	assert.ElementsMatch(t, []string{"red dog", "green frog"}, descs)
}

func TestPage_MatchesIndexTotals(t *testing.T) {
	repos := newTestRepositories(t)
	addItems(t, repos, 1, "red cat", "blue dog", "then what", "antelope", "cat nap")

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)
	ctx := context.Background()

	for _, query := range []string{"red do", "the cat", "the", "an", "a", "Cat!", "?!", ""} {
		t.Run(query, func(t *testing.T) {
			_, want, err := repos.Media.SearchByDescription(ctx, 1, query, 0, 0)
			require.NoError(t, err)

			page, err := searcher.Page(ctx, 1, query, "")
			require.NoError(t, err)
			assert.Equal(t, want, page.Total)
			assert.Len(t, page.Items, want)
		})
	}

	page, err := searcher.Page(ctx, 1, "red do", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	descs := []string{page.Items[0].Description, page.Items[1].Description}
	assert.ElementsMatch(t, []string{"red cat", "blue dog"}, descs)
}

func TestPage_ScopedToUser(t *testing.T) {
	repos := newTestRepositories(t)
	addItems(t, repos, 1, "my cat")
	addItems(t, repos, 2, "their cat")

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	page, err := searcher.Page(context.Background(), 2, "cat", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "their cat", page.Items[0].Description)
	assert.Equal(t, core.UserID(2), page.Items[0].UserID)
}

func TestPage_InvalidOffset(t *testing.T) {
	repos := newTestRepositories(t)
	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	for _, offset := range []string{"abc", "-15", "1.5"} {
		_, err := searcher.Page(context.Background(), 1, "cat", offset)
		assert.ErrorIs(t, err, ErrInvalidOffset, offset)
	}
}

func TestPage_ClosedStorage(t *testing.T) {
	repos := newTestRepositories(t)
	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)
	require.NoError(t, repos.Close())

	_, err = searcher.Page(context.Background(), 1, "cat", "")
	assert.Error(t, err)
}

func TestParseOffset(t *testing.T) {
	n, err := ParseOffset("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = ParseOffset("30")
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}

func TestNextOffset(t *testing.T) {
	assert.Equal(t, "15", NextOffset(0, 15, 16))
	assert.Equal(t, "", NextOffset(0, 15, 15))
	assert.Equal(t, "", NextOffset(0, 15, 3))
	assert.Equal(t, "30", NextOffset(15, 15, 31))
}

func TestPageWithMonitor(t *testing.T) {
	repos := newTestRepositories(t)
	addItems(t, repos, 1, "sunset photo")

	searcher, err := NewSearcher(repos.Media)
	require.NoError(t, err)

	monitor := &testMonitor{}
	page, err := searcher.PageWithMonitor(context.Background(), 1, "the sunset", "", monitor)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	assert.True(t, monitor.startCalled)
	assert.Equal(t, []string{"the", "sunset"}, monitor.terms)
	assert.Equal(t, 1, monitor.total)
	assert.Same(t, page, monitor.finished)
}

// testMonitor is a simple test implementation of SearchMonitor
type testMonitor struct {
	startCalled bool
	terms       []string
	total       int
	finished    *Page
}

func (m *testMonitor) Start(userID core.UserID, query string, offset int) {
	m.startCalled = true
}

func (m *testMonitor) AfterQueryRefinement(terms []string) {
	m.terms = terms
}

func (m *testMonitor) AfterSearch(items []*core.MediaItem, total int) {
	m.total = total
}

func (m *testMonitor) Finish(page *Page) {
	m.finished = page
}
