package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kiwinews/delegation-api/internal/db"
	"github.com/kiwinews/delegation-api/internal/mocks"
)

func newDelegationRouter(querier db.Querier) *gin.Engine {
	handler := NewDelegationHandler(NewCommonServices(querier, time.Minute))
	router := gin.New()
	router.GET("/api/v1/delegations", handler.ListDelegations)
	router.GET("/api/v1/allowlist", handler.ListAllowlist)
	router.GET("/health", HealthCheck)
	return router
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	return w
}

func TestListDelegations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("returns the delegation list", func(t *testing.T) {
		querier := mocks.NewMockQuerier(ctrl)
		querier.EXPECT().ListDelegations(gomock.Any()).Return([]db.Delegation{
			{Owner: "0xaaa0000000000000000000000000000000000001", Delegate: "0xbbb0000000000000000000000000000000000002", Authorized: true},
		}, nil)

		w := get(t, newDelegationRouter(querier), "/api/v1/delegations")
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "list", body["object"])
		assert.Len(t, body["data"], 1)
	})

	t.Run("maps database failures to 500", func(t *testing.T) {
		querier := mocks.NewMockQuerier(ctrl)
		querier.EXPECT().ListDelegations(gomock.Any()).Return(nil, errors.New("connection reset"))

		w := get(t, newDelegationRouter(querier), "/api/v1/delegations")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestListAllowlist(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().ListAllowlist(gomock.Any()).Return([]db.AllowlistEntry{
		{Address: "0xaaa0000000000000000000000000000000000001"},
		{Address: "0xbbb0000000000000000000000000000000000002"},
	}, nil)

	w := get(t, newDelegationRouter(querier), "/api/v1/allowlist")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["data"], 2)
}

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := get(t, newDelegationRouter(mocks.NewMockQuerier(ctrl)), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
