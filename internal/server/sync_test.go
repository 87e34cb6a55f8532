package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kiwinews/delegation-api/internal/db"
	"github.com/kiwinews/delegation-api/internal/indexer"
	"github.com/kiwinews/delegation-api/internal/logger"
	"github.com/kiwinews/delegation-api/internal/mocks"
)

func init() {
	logger.InitLogger("test")
}

func TestSyncOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/delegations":
			_, _ = w.Write([]byte(`{"object":"list","data":[
				{"owner":"0xAAA0000000000000000000000000000000000001","delegate":"0xBBB0000000000000000000000000000000000002","authorized":true}
			]}`))
		case "/api/v1/allowlist":
			_, _ = w.Write([]byte(`{"object":"list","data":["0xAAA0000000000000000000000000000000000001"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	querier := mocks.NewMockQuerier(ctrl)

	// Delegations are mirrored with lowercased addresses.
	querier.EXPECT().UpsertDelegation(gomock.Any(), db.UpsertDelegationParams{
		Owner:      "0xaaa0000000000000000000000000000000000001",
		Delegate:   "0xbbb0000000000000000000000000000000000002",
		Authorized: true,
	}).Return(db.Delegation{}, nil)

	// Allowlist reconciliation keeps current entries and drops stale ones.
	querier.EXPECT().UpsertAllowlistEntry(gomock.Any(), "0xaaa0000000000000000000000000000000000001").
		Return(db.AllowlistEntry{}, nil)
	querier.EXPECT().ListAllowlist(gomock.Any()).Return([]db.AllowlistEntry{
		{Address: "0xaaa0000000000000000000000000000000000001"},
		{Address: "0xccc0000000000000000000000000000000000003"},
	}, nil)
	querier.EXPECT().DeleteAllowlistEntry(gomock.Any(), "0xccc0000000000000000000000000000000000003").
		Return(nil)

	syncer := NewStateSyncer(querier, indexer.NewClient(server.URL), time.Minute)
	require.NoError(t, syncer.syncOnce(context.Background()))
}

func TestSyncOnceIndexerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	querier := mocks.NewMockQuerier(ctrl)
	syncer := NewStateSyncer(querier, indexer.NewClient(server.URL, indexer.WithMaxRetries(1)), time.Minute)

	assert.Error(t, syncer.syncOnce(context.Background()))
}

func TestStateSyncerStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().ListAllowlist(gomock.Any()).Return(nil, nil).AnyTimes()

	syncer := NewStateSyncer(querier, indexer.NewClient(server.URL), time.Hour)
	syncer.Start()
	syncer.Stop()
}
