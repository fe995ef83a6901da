package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/guardline-io/guardline/internal/call"
	"github.com/guardline-io/guardline/internal/config"
	"github.com/guardline-io/guardline/internal/storage/sqlite"
	"github.com/guardline-io/guardline/internal/websocket"
	"github.com/guardline-io/guardline/pkg/logger"
)

func newTestRouter(t *testing.T) (http.Handler, *sqlite.UtteranceStorage) {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := sqlite.NewUtteranceStorage(db, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	cfg := config.DefaultConfig()
	wsServer := websocket.NewServer(nil, logger.Nop())
	callService := call.NewService(cfg, wsServer, storage, nil, logger.Nop())

	router := NewRouter(callService, storage, cfg, logger.Nop(), wsServer)
	return router.Routes(), storage
}

func TestGetRoomHistory(t *testing.T) {
	handler, storage := newTestRouter(t)
	now := time.Now().UTC()

	for _, r := range []*sqlite.UtteranceRecord{
		{ID: "u-old", Room: "room-1", SessionID: "s-1", Text: "old", Risk: "low", Score: 0.1, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "u-new", Room: "room-1", SessionID: "s-1", Text: "send money", Risk: "high", Score: 0.9, CreatedAt: now.Add(-time.Minute)},
	} {
		if err := storage.StoreUtterance(r); err != nil {
			t.Fatalf("StoreUtterance failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/room-1/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Room       string                    `json:"room"`
		Utterances []*sqlite.UtteranceRecord `json:"utterances"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Room != "room-1" {
		t.Errorf("room = %q, want room-1", body.Room)
	}
	// 24h default window excludes the aged record
	if len(body.Utterances) != 1 || body.Utterances[0].ID != "u-new" {
		t.Errorf("utterances = %+v, want only u-new", body.Utterances)
	}
}

func TestGetRoomHistoryRejectsBadWindow(t *testing.T) {
	handler, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/room-1/history?since_minutes=soon", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetCallStatusNoSession(t *testing.T) {
	handler, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/room-9/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
