package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"

	"cardfetch/pkg/api"
)

// handleFetch serves POST /fetch. Known names come straight from the
// cache; unknown ones are queued (or reported as "queue full"). An
// empty name list dumps every cached record, which is the client's
// snapshot-reconcile signal.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req api.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn().Err(err).Msg("Bad /fetch request body")
		s.writeError(w, "/fetch", http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	if len(req.CardNames) == 0 {
		cards, err := s.store.All(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Cache dump failed")
			s.writeError(w, "/fetch", http.StatusInternalServerError, "internal server error")
			return
		}
		records := make([]api.CardRecord, 0, len(cards))
		for _, card := range cards {
			records = append(records, card.Record())
		}
		s.writeJSON(w, "/fetch", records)
		return
	}

	records := make([]api.CardRecord, 0, len(req.CardNames))
	for _, name := range req.CardNames {
		if card, err := s.store.Get(ctx, name); err == nil {
			records = append(records, card.Record())
			continue
		}

		status := api.StatusQueued
		if !s.worker.Enqueue(name) {
			status = api.StatusQueueFull
		}
		records = append(records, api.CardRecord{Name: name, Status: status})
	}

	s.writeJSON(w, "/fetch", records)
}

// handleStatus serves GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	size, err := s.store.Len(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Cache size lookup failed")
		s.writeError(w, "/status", http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, "/status", api.StatusResponse{
		CacheSize:  size,
		QueueSize:  s.worker.QueueSize(),
		IsFetching: s.worker.Busy(),
	})
}

// handleExport serves POST /export: a CSV of the requested names, or of
// the whole cache when no names are given. Names the cache does not
// hold export as not-found rows.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req api.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "/export", http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	var rows [][]string

	if len(req.CardNames) == 0 {
		cards, err := s.store.All(ctx)
		if err != nil {
			s.writeError(w, "/export", http.StatusInternalServerError, "internal server error")
			return
		}
		for _, card := range cards {
			rows = append(rows, exportRow(card))
		}
	} else {
		for _, name := range req.CardNames {
			card, err := s.store.Get(ctx, name)
			if err != nil {
				rows = append(rows, []string{name, "", "", "", "", api.StatusNotFound})
				continue
			}
			rows = append(rows, exportRow(card))
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="card_data.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Oracle Text", "Mana Cost", "Type Line", "Set Name", "Status"})
	for _, row := range rows {
		_ = cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error().Err(err).Msg("CSV export write failed")
	}
	httpRequestsTotal.WithLabelValues("/export", "200").Inc()
}

func exportRow(card Card) []string {
	rec := card.Record()
	return []string{rec.Name, rec.OracleText, rec.ManaCost, rec.TypeLine, rec.SetName, rec.Status}
}

// handleClear serves POST /clear: drop the cache and everything queued.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Cache clear failed")
		s.writeError(w, "/clear", http.StatusInternalServerError, "internal server error")
		return
	}
	s.worker.Drain()

	s.logger.Info().Msg("Cache and queue cleared")
	s.writeJSON(w, "/clear", api.ClearResponse{Success: true, Message: "All cards cleared"})
}

// handleIndex serves a server-rendered snapshot of the cache as HTML.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.All(r.Context())
	if err != nil {
		s.writeError(w, "/", http.StatusInternalServerError, "internal server error")
		return
	}

	records := make([]api.CardRecord, 0, len(cards))
	for _, card := range cards {
		records = append(records, card.Record())
	}

	list, err := s.renderer.CardList(records)
	if err != nil {
		s.writeError(w, "/", http.StatusInternalServerError, "internal server error")
		return
	}
	page, err := s.renderer.Page("Card Results", list)
	if err != nil {
		s.writeError(w, "/", http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
	httpRequestsTotal.WithLabelValues("/", "200").Inc()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// rateLimited wraps a handler with the /fetch rate limiter.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			rateLimitedTotal.Inc()
			s.logger.Warn().Str("remote", r.RemoteAddr).Msg("Rate limit exceeded")
			s.writeError(w, r.URL.Path, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Response encode failed")
		return
	}
	httpRequestsTotal.WithLabelValues(endpoint, "200").Inc()
}

func (s *Server) writeError(w http.ResponseWriter, endpoint string, code int, msg string) {
	httpRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
