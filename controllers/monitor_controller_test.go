package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockwatch_backend/models"
	"stockwatch_backend/services/alertcheck"
	"stockwatch_backend/services/quotes"

	"github.com/gin-gonic/gin"
)

type stubAlertStore struct {
	alerts  []models.Alert
	loadErr error
}

func (s *stubAlertStore) LoadPending(ctx context.Context) ([]models.Alert, error) {
	return s.alerts, s.loadErr
}

func (s *stubAlertStore) MarkTriggered(ctx context.Context, alertID uint, at time.Time) (bool, error) {
	return true, nil
}

type stubGateway struct{}

func (stubGateway) FetchPrice(ctx context.Context, market, ticker string) (*quotes.Quote, error) {
	return nil, errors.New("no vendor in tests")
}

func newTestRouter(store alertcheck.AlertStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	runner := alertcheck.NewRunner(store, stubGateway{}, nil, 5, 0)
	mc := NewMonitorController(runner, nil, nil)

	router := gin.New()
	router.POST("/check", mc.RunCheck)
	router.GET("/status", mc.Status)
	router.GET("/stream", mc.Stream)
	return router
}

func TestRunCheckZeroAlerts(t *testing.T) {
	router := newTestRouter(&stubAlertStore{})

	req := httptest.NewRequest("POST", "/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Success    bool  `json:"success"`
		Checked    int   `json:"checked"`
		Triggered  int   `json:"triggered"`
		DurationMs int64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !body.Success || body.Checked != 0 || body.Triggered != 0 {
		t.Errorf("body = %+v, want success with zero counts", body)
	}
}

func TestRunCheckStoreFailureReturns500(t *testing.T) {
	router := newTestRouter(&stubAlertStore{loadErr: errors.New("db unavailable")})

	req := httptest.NewRequest("POST", "/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Success || body.Error != "internal error" {
		t.Errorf("body = %+v, want generic internal error", body)
	}
}

func TestStatusWithoutLedger(t *testing.T) {
	router := newTestRouter(&stubAlertStore{})

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Success bool              `json:"success"`
		Runs    []json.RawMessage `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !body.Success || len(body.Runs) != 0 {
		t.Errorf("body = %+v, want success with empty runs", body)
	}
}

func TestStreamWithoutHub(t *testing.T) {
	router := newTestRouter(&stubAlertStore{})

	req := httptest.NewRequest("GET", "/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when the stream hub is disabled", rec.Code)
	}
}
