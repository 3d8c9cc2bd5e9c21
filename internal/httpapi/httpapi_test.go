package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/impact"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/merge"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/pipeline"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/revert"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	p := pipeline.New(store, nil, nil, nil)
	m := merge.New(store, 0)
	r := revert.New(store, 0)
	a := impact.New(store)
	return New(store, p, m, r, a, nil), store
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetGroupNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/grupos/nope", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnifyGroupEndToEnd(t *testing.T) {
	s, store := newTestServer(t)
	store.AddEntity(memory.Entity{ID: "n1", Kind: domain.KindNeighborhood, Name: "Centro", ParentID: "city-1"})
	store.AddEntity(memory.Entity{ID: "n2", Kind: domain.KindNeighborhood, Name: "Centro Velho", ParentID: "city-1"})

	g := &domain.DuplicateGroup{
		EntityKind: domain.KindNeighborhood,
		MemberIDs:  []string{"n1", "n2"},
		Status:     domain.StatusPending,
	}
	require.NoError(t, store.CreateGroup(context.Background(), g))

	body := []byte(`{"chosen_canonical_id":"n1"}`)
	req := httptest.NewRequest(http.MethodPut, "/grupos/"+g.ID+"/unificar", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.DuplicateGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusExecuted, got.Status)
}

func TestDiscardGroupRejectsIllegalTransition(t *testing.T) {
	s, store := newTestServer(t)
	g := &domain.DuplicateGroup{
		EntityKind: domain.KindNeighborhood,
		MemberIDs:  []string{"n1", "n2"},
		Status:     domain.StatusExecuted,
	}
	require.NoError(t, store.CreateGroup(context.Background(), g))

	req := httptest.NewRequest(http.MethodPut, "/grupos/"+g.ID+"/descartar", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
