package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/credportal/credportal/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPage(t *testing.T) {
	t.Run("Should raise page and page size to their minimums", func(t *testing.T) {
		page, size := core.ClampPage(0, 0)
		assert.Equal(t, 1, page)
		assert.Equal(t, 1, size)
		page, size = core.ClampPage(-4, -10)
		assert.Equal(t, 1, page)
		assert.Equal(t, 1, size)
	})
	t.Run("Should cap page size at the maximum", func(t *testing.T) {
		_, size := core.ClampPage(3, 1000)
		assert.Equal(t, core.MaxPageSize, size)
	})
	t.Run("Should keep values already in range", func(t *testing.T) {
		page, size := core.ClampPage(7, 25)
		assert.Equal(t, 7, page)
		assert.Equal(t, 25, size)
	})
}

func TestTotalPages(t *testing.T) {
	t.Run("Should report one page when there are no records", func(t *testing.T) {
		assert.Equal(t, int64(1), core.TotalPages(0, 10))
	})
	t.Run("Should round up partial pages", func(t *testing.T) {
		assert.Equal(t, int64(1), core.TotalPages(1, 10))
		assert.Equal(t, int64(1), core.TotalPages(10, 10))
		assert.Equal(t, int64(2), core.TotalPages(11, 10))
		assert.Equal(t, int64(25), core.TotalPages(25, 1))
	})
	t.Run("Should hold max(1, ceil(total/size)) across a range", func(t *testing.T) {
		for total := int64(0); total < 250; total++ {
			for size := 1; size <= core.MaxPageSize; size += 7 {
				got := core.TotalPages(total, size)
				want := (total + int64(size) - 1) / int64(size)
				if want < 1 {
					want = 1
				}
				require.Equal(t, want, got, "total=%d size=%d", total, size)
			}
		}
	})
}

func TestPageRequest_Offset(t *testing.T) {
	t.Run("Should compute offset from the clamped values", func(t *testing.T) {
		assert.Equal(t, uint64(0), core.PageRequest{Page: 0, PageSize: 10}.Offset())
		assert.Equal(t, uint64(20), core.PageRequest{Page: 3, PageSize: 10}.Offset())
		assert.Equal(t, uint64(100), core.PageRequest{Page: 2, PageSize: 500}.Offset())
	})
}

func TestPageRequest_HasFilter(t *testing.T) {
	t.Run("Should treat blank filters as absent", func(t *testing.T) {
		assert.False(t, core.PageRequest{}.HasFilter())
		assert.False(t, core.PageRequest{Filter: "   "}.HasFilter())
		assert.True(t, core.PageRequest{Filter: " ana "}.HasFilter())
		assert.Equal(t, "ana", core.PageRequest{Filter: " ana "}.Normalize().Filter)
	})
}

func TestNewPage(t *testing.T) {
	t.Run("Should encode an empty page with an empty data array", func(t *testing.T) {
		page := core.NewPage[string](nil, 0, core.PageRequest{Page: 5, PageSize: 0})
		raw, err := json.Marshal(page)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":[],"total_records":0,"page":5,"page_size":1,"total_pages":1}`, string(raw))
	})
}

var fixedTime = time.Date(2025, time.August, 3, 10, 0, 0, 0, time.UTC)
