package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
)

func TestPathID(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest("GET", "/visits/42", nil), map[string]string{"id": "42"})
	id, err := PathID(req, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		req := mux.SetURLVars(httptest.NewRequest("GET", "/visits/x", nil), map[string]string{"id": raw})
		_, err := PathID(req, "id")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), raw)
	}
}

func TestQueryID(t *testing.T) {
	id, err := QueryID(httptest.NewRequest("GET", "/files", nil), "visit_id")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = QueryID(httptest.NewRequest("GET", "/files?visit_id=9", nil), "visit_id")
	require.NoError(t, err)
	assert.Equal(t, int64(9), *id)

	_, err = QueryID(httptest.NewRequest("GET", "/files?visit_id=nine", nil), "visit_id")
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest("POST", "/medicines", strings.NewReader(`{"name":"Amoxicillin"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &v))
	assert.Equal(t, "Amoxicillin", v.Name)

	err := DecodeJSON(httptest.NewRecorder(), httptest.NewRequest("POST", "/medicines", strings.NewReader("")), &v)
	assert.Equal(t, "request body is required", err.Error())

	err = DecodeJSON(httptest.NewRecorder(), httptest.NewRequest("POST", "/medicines", strings.NewReader("{")), &v)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
