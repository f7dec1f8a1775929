package api

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/armoriq/sentinel/internal/alert"
	"github.com/armoriq/sentinel/internal/approval"
	"github.com/armoriq/sentinel/internal/auth"
	"github.com/armoriq/sentinel/internal/config"
	"github.com/armoriq/sentinel/internal/gateway"
	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/tirs"
	"github.com/armoriq/sentinel/internal/trace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestServer wires a Server against real (but minimal) dependencies —
// no mocks — so handler tests exercise the actual Gateway/TIRS/Compliance
// wiring, same as cmd/sentinel's runServe.
func newTestServer(t *testing.T) (*Server, *config.Loader) {
	t.Helper()
	logger := testLogger()

	store, err := trace.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	engine := policy.NewEngine(logger)
	engine.Register(policy.NewVendorApprovalPolicy())

	t1, err := tirs.New(tirs.Config{StorageDir: t.TempDir(), Logger: logger})
	if err != nil {
		t.Fatalf("tirs.New: %v", err)
	}

	gw := gateway.New(gateway.DefaultConfig(), engine, t1, logger)

	alertMgr := alert.NewManager(config.AlertsConfig{}, logger)
	approvals := approval.NewQueue(store, alertMgr, logger)
	gw.SetApprovals(approvals)

	tokenManager := auth.NewTokenManager(0, logger)

	cfgLoader := config.NewLoader()

	cfg := config.ServerConfig{Port: 0, CORS: false, FailMode: "closed"}
	s := NewServer(cfg, gw, store, cfgLoader, approvals, tokenManager, logger)
	return s, cfgLoader
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
}

func TestSystemStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/system/status", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
