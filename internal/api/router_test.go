package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glassflow/batchget/internal/api/mocks"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/tests/testutils"
)

func TestRouterBatchGet(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockGetter := mocks.NewMockBatchGetter(ctrl)

	key := models.Key{Namespace: "test", Set: "users", UserKey: int64(7)}
	mockGetter.EXPECT().Policy().Return(models.DefaultBatchPolicy())
	mockGetter.EXPECT().BatchGetWithPolicy(gomock.Any(), []models.Key{key}, gomock.Any()).Return([]models.BatchEntry{
		{Key: key, Status: models.StatusOK, Record: models.Record{"name": "bob"}, Meta: &models.Metadata{Generation: 1}},
	}, nil)

	router := NewRouter(testutils.NewDiscardLogger(), mockGetter)

	body := `{"keys":[{"namespace":"test","set":"users","key":"7","key_type":"integer"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/get", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var resp batchGetResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "ok", resp.Entries[0].StatusText)
	assert.Equal(t, "bob", resp.Entries[0].Record["name"])
	assert.Equal(t, "7", resp.Entries[0].Key.Key)
}

func TestRouterBatchGetClusterUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockGetter := mocks.NewMockBatchGetter(ctrl)

	mockGetter.EXPECT().Policy().Return(models.DefaultBatchPolicy())
	mockGetter.EXPECT().BatchGetWithPolicy(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrClusterUnavailable)

	router := NewRouter(testutils.NewDiscardLogger(), mockGetter)

	body := `{"keys":[{"namespace":"test","key":"a"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/get", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))

	var errDetail ErrorDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errDetail))
	assert.Equal(t, "cluster_unavailable", errDetail.Code)
}

func TestRouterHealthz(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockGetter := mocks.NewMockBatchGetter(ctrl)

	router := NewRouter(testutils.NewDiscardLogger(), mockGetter)

	mockGetter.EXPECT().Ready().Return(true)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mockGetter.EXPECT().Ready().Return(false)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(testutils.NewDiscardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
