package handlers

import (
	"net/http"
	"testing"

	"github.com/marmos91/relayfs/pkg/registry"
)

func TestHealthHandler_LivenessAlwaysOK(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := doJSON(t, h.Liveness, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_ReadinessUnavailableWithoutRegistry(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := doJSON(t, h.Readiness, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthHandler_ReadinessOKWithRegistry(t *testing.T) {
	h := NewHealthHandler(registry.New())
	rec := doJSON(t, h.Readiness, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
