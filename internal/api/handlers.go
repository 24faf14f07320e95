package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/runwatch/internal/display"
	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
)

// writeResponse is returned by every mutating route. Warnings list advisory
// validation failures; the engine rendered the payload regardless.
type writeResponse struct {
	View     display.View `json:"view"`
	Warnings []string     `json:"warnings,omitempty"`
}

type dismissResponse struct {
	Dismissed display.Mode `json:"dismissed"`
	View      display.View `json:"view"`
}

// putProgress handles PUT /v1/progress. A payload without a subject is
// rejected with 400; other validation failures are reported as warnings.
func (s *Server) putProgress(w http.ResponseWriter, r *http.Request) {
	var agg progress.Aggregate
	if err := decodeBody(w, r, &agg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var warnings []string
	if err := agg.Validate(); err != nil {
		if errors.Is(err, progress.ErrMissingSubject) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		warnings = append(warnings, err.Error())
	}
	view := s.engine.SetProgress(r.Context(), &agg)
	writeJSON(w, http.StatusOK, writeResponse{View: view, Warnings: warnings})
}

// deleteProgress handles DELETE /v1/progress: the producer clears its run.
func (s *Server) deleteProgress(w http.ResponseWriter, r *http.Request) {
	view := s.engine.SetProgress(r.Context(), nil)
	writeJSON(w, http.StatusOK, writeResponse{View: view})
}

// putScreening handles PUT /v1/screening. An empty stage is rejected with
// 400; an out-of-range pct is clamped and reported as a warning.
func (s *Server) putScreening(w http.ResponseWriter, r *http.Request) {
	var agg screening.Aggregate
	if err := decodeBody(w, r, &agg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var warnings []string
	if err := agg.Validate(); err != nil {
		if errors.Is(err, screening.ErrEmptyStage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		warnings = append(warnings, err.Error())
	}
	view := s.engine.SetScreening(r.Context(), &agg)
	writeJSON(w, http.StatusOK, writeResponse{View: view, Warnings: warnings})
}

func (s *Server) deleteScreening(w http.ResponseWriter, r *http.Request) {
	view := s.engine.SetScreening(r.Context(), nil)
	writeJSON(w, http.StatusOK, writeResponse{View: view})
}

// getView handles GET /v1/view: 200 with the view, or 204 when nothing is shown.
func (s *Server) getView(w http.ResponseWriter, _ *http.Request) {
	view := s.engine.View()
	if !view.Visible() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// dismiss handles POST /v1/dismiss.
func (s *Server) dismiss(w http.ResponseWriter, r *http.Request) {
	mode := s.engine.Dismiss(r.Context())
	writeJSON(w, http.StatusOK, dismissResponse{Dismissed: mode, View: s.engine.View()})
}

// streamView handles GET /v1/view/stream as Server-Sent Events. Each state
// change arrives as a "view" event; comments keep idle connections open.
func (s *Server) streamView(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	views, cancel := s.engine.Subscribe()
	defer cancel()
	metrics.IncViewStreams()
	defer metrics.DecViewStreams()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	pace := rate.NewLimiter(s.streamRate, s.streamBurst)
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case view, open := <-views:
			if !open {
				return
			}
			if err := pace.Wait(r.Context()); err != nil {
				return
			}
			view, open = latest(views, view)
			if !open {
				return
			}
			if err := writeEvent(w, view); err != nil {
				s.logger.Debug("view stream closed", zap.Error(err), zap.String("request_id", RequestID(r.Context())))
				return
			}
			flusher.Flush()
		}
	}
}

// latest drains a view that arrived while the stream was paced.
func latest(views <-chan display.View, cur display.View) (display.View, bool) {
	select {
	case v, open := <-views:
		if !open {
			return cur, false
		}
		return v, true
	default:
		return cur, true
	}
}

func writeEvent(w http.ResponseWriter, view display.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: view\ndata: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
