package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePageQuery(t *testing.T) {
	q := url.Values{}
	page := ParsePageQuery(q, 50, 200)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 50, page.PerPage)
	require.Equal(t, 50, page.Limit())
	require.Equal(t, 0, page.Offset())

	q.Set("page", "3")
	q.Set("per_page", "25")
	page = ParsePageQuery(q, 50, 200)
	require.Equal(t, 25, page.Limit())
	require.Equal(t, 50, page.Offset())

	q.Set("per_page", "5000")
	page = ParsePageQuery(q, 50, 200)
	require.Equal(t, 200, page.PerPage, "per_page is clamped")

	q.Set("page", "-1")
	q.Set("per_page", "junk")
	page = ParsePageQuery(q, 50, 200)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 50, page.PerPage)
}

func TestPaginateMetadata(t *testing.T) {
	meta := PageQuery{Page: 2, PerPage: 25}.Paginate(51)
	require.Equal(t, 2, meta.Page)
	require.Equal(t, 25, meta.PerPage)
	require.Equal(t, 51, meta.Total)
	require.Equal(t, 3, meta.TotalPages)

	meta = NewPagination(0, 0, 0)
	require.Equal(t, 1, meta.Page)
	require.Equal(t, 20, meta.PerPage)
	require.Equal(t, 0, meta.TotalPages)
}
