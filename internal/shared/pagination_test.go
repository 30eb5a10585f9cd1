package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationDefaults(t *testing.T) {
	page := NewPagination(0, 0, 45)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 20, page.PerPage)
	require.Equal(t, 45, page.Total)
	require.Equal(t, 3, page.TotalPages)
}

func TestOffset(t *testing.T) {
	require.Equal(t, 0, NewPagination(1, 20, 100).Offset())
	require.Equal(t, 20, NewPagination(2, 20, 100).Offset())
	require.Equal(t, 90, NewPagination(10, 10, 100).Offset())
}
