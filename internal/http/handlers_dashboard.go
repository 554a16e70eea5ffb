package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"receiptdash/internal/core"
	"receiptdash/internal/dashboard"
	"receiptdash/internal/export"
	"receiptdash/internal/log"
)

// dashboardResponse is the full view-model handed to the client.
type dashboardResponse struct {
	*core.AnalyticsSnapshot
	Version       string `json:"version"`
	ChartType     string `json:"chart_type"`
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	if rng := strings.TrimSpace(r.URL.Query().Get("range")); rng != "" {
		s.controller.SetRange(core.ParseRangeSelector(rng))
	}

	view := s.controller.View()
	key := s.dashboardCacheKey(view)

	if body, found := s.snapshotCache.Get(key); found {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	resp := dashboardResponse{
		AnalyticsSnapshot: view.Snapshot,
		Version:           view.Version,
		ChartType:         view.ChartType,
		Authenticated:     view.Authenticated,
		Email:             view.Email,
	}
	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard marshal error", log.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, "failed to render dashboard", toastError)
		return
	}

	s.snapshotCache.Set(key, body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) dashboardCacheKey(view dashboard.View) string {
	return view.Version + "|" + view.Snapshot.Range + "|" + view.ChartType + "|" + view.Email
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	err := s.controller.Refresh(r.Context())
	switch {
	case err == nil:
		s.snapshotCache.Flush()
		view := s.controller.View()
		writeJSON(w, http.StatusOK, dashboardResponse{
			AnalyticsSnapshot: view.Snapshot,
			Version:           view.Version,
			ChartType:         view.ChartType,
			Authenticated:     view.Authenticated,
			Email:             view.Email,
		})
	case errors.Is(err, dashboard.ErrRefreshInFlight):
		writeMessage(w, http.StatusConflict, err.Error(), toastInfo)
	case errors.Is(err, dashboard.ErrNotAuthenticated), errors.Is(err, dashboard.ErrSessionExpired):
		s.snapshotCache.Flush()
		writeMessage(w, http.StatusUnauthorized, err.Error(), toastError)
	default:
		s.snapshotCache.Flush()
		s.logger.ErrorContext(r.Context(), "Refresh failed", log.FieldError, err)
		writeMessage(w, http.StatusBadGateway, "failed to load receipt data", toastError)
	}
}

func (s *Server) handleChartToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	chart := s.controller.ToggleChartType()
	s.logger.InfoContext(r.Context(), "Chart type toggled", log.FieldChartType, chart)
	writeJSON(w, http.StatusOK, map[string]string{"chart_type": chart})
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	items := s.controller.Records()
	if items == nil {
		items = []core.ReceiptRecord{}
	}
	writeJSON(w, http.StatusOK, map[string][]core.ReceiptRecord{"items": items})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	records := s.controller.Records()
	if len(records) == 0 {
		writeMessage(w, http.StatusNotFound, "No data to export", toastError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
	if err := export.WriteCSV(w, records); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export error", log.FieldError, err)
	}
}
