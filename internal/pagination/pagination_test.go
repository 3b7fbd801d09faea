package pagination

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", DefaultPage, DefaultLimit},
		{"?page=3&limit=5", 3, 5},
		{"?page=0&limit=-1", DefaultPage, DefaultLimit},
		{"?page=abc&limit=xyz", DefaultPage, DefaultLimit},
		{"?limit=1000", DefaultPage, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParseParams(httptest.NewRequest("GET", "/patients"+tt.query, nil))
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
		})
	}
}

func TestOffsetAndMeta(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	assert.Equal(t, 10, p.Offset())

	m := p.Meta(25)
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrevious)

	empty := Params{Page: 1, Limit: 10}.Meta(0)
	assert.Equal(t, 1, empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestNewPage_NilRendersEmptyArray(t *testing.T) {
	page := NewPage[string](nil, Params{Page: 1, Limit: 20}, 0)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"pagination":{"current_page":1,"per_page":20,"total_pages":1,
		"total_records":0,"has_next":false,"has_previous":false}}`, string(raw))
}
