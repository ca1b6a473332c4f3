package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/engine"
)

// The HTTP API adapts the real engine without further glue.
var _ Service = (*engine.Engine)(nil)

type stubService struct {
	summaries []engine.CollectionSummary
	detail    *engine.CollectionDetail
	report    engine.MappingsReport
	err       error
}

func (s *stubService) ListCollections(context.Context) ([]engine.CollectionSummary, error) {
	return s.summaries, s.err
}

func (s *stubService) CollectionInfo(_ context.Context, name string) (*engine.CollectionDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func (s *stubService) ModelMappings(context.Context) engine.MappingsReport {
	return s.report
}

type stubHealth struct {
	err error
}

func (h *stubHealth) Health(context.Context) error { return h.err }

func newTestServer(t *testing.T, service *stubService, health *stubHealth) *Server {
	t.Helper()
	if service == nil {
		service = &stubService{}
	}
	if health == nil {
		health = &stubHealth{}
	}
	s, err := NewServer(service, health, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, &stubHealth{}, nil, zap.NewNop(), nil)
	assert.ErrorContains(t, err, "service is required")

	_, err = NewServer(&stubService{}, nil, nil, zap.NewNop(), nil)
	assert.ErrorContains(t, err, "health checker is required")

	_, err = NewServer(&stubService{}, &stubHealth{}, nil, nil, nil)
	assert.ErrorContains(t, err, "logger is required")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		s := newTestServer(t, nil, &stubHealth{})
		rec := doRequest(s, http.MethodGet, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("backend down", func(t *testing.T) {
		s := newTestServer(t, nil, &stubHealth{err: errors.New("connection refused")})
		rec := doRequest(s, http.MethodGet, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unavailable", body.Status)
		assert.Contains(t, body.Error, "connection refused")
	})
}

func TestListCollections(t *testing.T) {
	s := newTestServer(t, &stubService{
		summaries: []engine.CollectionSummary{
			{Name: "legal_analysis", PointsCount: 12, Dimensions: 1024},
			{Name: "working_solutions", PointsCount: 3, Dimensions: 384},
		},
	}, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/collections")
	require.Equal(t, http.StatusOK, rec.Code)

	var body CollectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "legal_analysis", body.Collections[0].Name)
}

func TestCollectionInfo(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s := newTestServer(t, &stubService{
			detail: &engine.CollectionDetail{
				CollectionSummary: engine.CollectionSummary{Name: "legal_analysis", Dimensions: 1024},
				HNSWEfConstruct:   200,
			},
		}, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/collections/legal_analysis")
		require.Equal(t, http.StatusOK, rec.Code)

		var body engine.CollectionDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, uint64(200), body.HNSWEfConstruct)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			err        error
			wantStatus int
			wantCode   string
		}{
			{fmt.Errorf("%w: nope", engine.ErrNoSuchCollection), http.StatusNotFound, "no_such_collection"},
			{fmt.Errorf("%w: bad", engine.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
			{fmt.Errorf("%w: drift", engine.ErrModelMismatch), http.StatusConflict, "model_mismatch"},
			{fmt.Errorf("%w: down", engine.ErrBackendUnavailable), http.StatusServiceUnavailable, "backend_unavailable"},
			{errors.New("boom"), http.StatusInternalServerError, "internal"},
		}
		for _, tt := range tests {
			s := newTestServer(t, &stubService{err: tt.err}, nil)
			rec := doRequest(s, http.MethodGet, "/api/v1/collections/x")
			assert.Equal(t, tt.wantStatus, rec.Code, tt.err.Error())

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		}
	})
}

func TestModels(t *testing.T) {
	s := newTestServer(t, &stubService{
		report: engine.MappingsReport{DefaultModel: "all-minilm-l6-v2"},
	}, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/models")
	require.Equal(t, http.StatusOK, rec.Code)

	var body engine.MappingsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "all-minilm-l6-v2", body.DefaultModel)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := doRequest(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMCPMount(t *testing.T) {
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	s, err := NewServer(&stubService{}, &stubHealth{}, mcpHandler, zap.NewNop(), nil)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodPost, "/mcp")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Without a handler the route is absent.
	s2 := newTestServer(t, nil, nil)
	rec = doRequest(s2, http.MethodPost, "/mcp")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
