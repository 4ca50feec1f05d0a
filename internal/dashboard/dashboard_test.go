package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/castiron-io/etlworker/internal/config"
	"github.com/castiron-io/etlworker/internal/engine"
	"github.com/castiron-io/etlworker/internal/objectid"
	"github.com/castiron-io/etlworker/internal/objectstore"
	"github.com/castiron-io/etlworker/internal/procconfig"
	"github.com/castiron-io/etlworker/internal/producer"
)

func testServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	store := objectstore.NewMemory()
	eng := engine.New(store, producer.NoOp{}, nil, config.WorkerConfig{ConfigSuffix: ".toml", ChildPollInterval: 500}, nil, t.TempDir())
	wsSink := producer.NewWebSocketSink()
	srv := New(config.DashboardConfig{Host: "localhost", Port: 0, Enabled: true}, eng.Registry(), wsSink, nil)
	return srv, eng
}

func TestHandleHealthzReportsRegistrySize(t *testing.T) {
	srv, eng := testServer(t)

	cfg, err := procconfig.Parse([]byte(`{"glob":"*.csv","shell":"true"}`))
	if err != nil {
		t.Fatalf("failed to parse fixture config: %v", err)
	}
	eng.Registry().Put(objectid.New("bucket", "configs/a.toml"), cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["registry_size"] != float64(1) {
		t.Errorf("expected registry_size 1, got %v", body["registry_size"])
	}
}

func TestHandleConfigsReturnsSnapshots(t *testing.T) {
	srv, eng := testServer(t)
	cfg, _ := procconfig.Parse([]byte(`{"glob":"*.csv","shell":"true"}`))
	eng.Registry().Put(objectid.New("bucket", "configs/a.toml"), cfg)

	req := httptest.NewRequest(http.MethodGet, "/configs", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	var snaps []engine.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snaps); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Glob != "*.csv" {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// give the server a moment to register the connection before publishing.
	time.Sleep(50 * time.Millisecond)
	srv.wsSink.Publish(producer.Message{Type: "job_update", JobID: "job-1", Task: "loading"})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg producer.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read published message: %v", err)
	}
	if msg.JobID != "job-1" || msg.Task != "loading" {
		t.Errorf("unexpected message: %+v", msg)
	}
}
