package handler

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestExportCandidatesCSV(t *testing.T) {
	api := newTestAPI(t)
	lead := api.createLead(t, map[string]any{"name": "Helena Prado", "phone": "11987654321", "budgetMax": 450000})
	api.clock.Advance(10 * 24 * time.Hour)

	rec := api.do(t, http.MethodGet, "/api/v1/reactivation/candidates/export?minDaysInactive=7&sortBy=budget", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d rows", len(rows))
	}
	if rows[0][0] != "lead_id" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	row := rows[1]
	if row[0] != lead.ID.String() || row[1] != "Helena Prado" {
		t.Fatalf("unexpected row %v", row)
	}
	if row[7] != "10" || row[8] != "450000" || row[9] != "0" {
		t.Fatalf("unexpected activity columns %v", row)
	}
}

func TestExportCandidatesRejectsBadQuery(t *testing.T) {
	api := newTestAPI(t)

	if rec := api.do(t, http.MethodGet, "/api/v1/reactivation/candidates/export?minDaysInactive=-1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative window, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/api/v1/reactivation/candidates/export?minDaysInactive=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed number, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/api/v1/reactivation/candidates/export?sortBy=random", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}
}
