package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"staybook/internal/app"
	"staybook/internal/domain"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SweepRunner is satisfied by *app.SweepJob.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time) (app.SweepReport, error)
}

// AccommodationReader is satisfied by *app.AccommodationService.
type AccommodationReader interface {
	Get(ctx context.Context, id int64) (domain.Accommodation, error)
}

// Handlers serves the operational endpoints. Booking routes live elsewhere.
type Handlers struct {
	DB             Pinger
	Sweeps         SweepRunner
	Accommodations AccommodationReader
	Bookings       domain.BookingRepository
	Now            func() time.Time
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.readyz)
	s.mux.Post("/internal/sweeps", h.runSweep)
	s.mux.Get("/internal/accommodations/{id}/occupancy", h.occupancy)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("readiness check failed")
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runSweep triggers an expiration run now. An optional ?at=YYYY-MM-DD replays
// the run as if it fired on that day.
func (h *Handlers) runSweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeps == nil {
		writeProblem(w, http.StatusNotImplemented, "Not Implemented", "sweeps are not configured")
		return
	}
	now := h.now()
	if at := r.URL.Query().Get("at"); at != "" {
		day, err := time.Parse(time.DateOnly, at)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid at", "at must be a date in YYYY-MM-DD form")
			return
		}
		now = day
	}
	// the run outlives a disconnecting client
	rep, err := h.Sweeps.Run(context.WithoutCancel(r.Context()), now)
	if err != nil {
		log.Error().Err(err).Msg("manual sweep failed")
		writeProblem(w, http.StatusInternalServerError, "Sweep Failed", err.Error())
		return
	}
	status := http.StatusOK
	if rep.Skipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, rep)
}

type occupancyView struct {
	AccommodationID int64  `json:"accommodation_id"`
	From            string `json:"from"`
	To              string `json:"to"`
	Capacity        int    `json:"capacity"`
	MaxOccupancy    int    `json:"max_occupancy"`
	Available       bool   `json:"available"`
}

func (h *Handlers) occupancy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	from, err1 := time.Parse(time.DateOnly, r.URL.Query().Get("from"))
	to, err2 := time.Parse(time.DateOnly, r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid range", "from and to must be dates in YYYY-MM-DD form")
		return
	}
	rng, err := domain.NewDateRange(from, to)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid range", err.Error())
		return
	}
	if h.Accommodations == nil || h.Bookings == nil {
		writeProblem(w, http.StatusNotImplemented, "Not Implemented", "occupancy reads are not configured")
		return
	}
	acc, err := h.Accommodations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		log.Error().Err(err).Int64("accommodation_id", id).Msg("accommodation lookup failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "accommodation lookup failed")
		return
	}
	occ, err := app.Occupancy(r.Context(), h.Bookings, acc.ID, rng, 0)
	if err != nil {
		log.Error().Err(err).Int64("accommodation_id", id).Msg("occupancy query failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "occupancy query failed")
		return
	}

	etag, body := calcETagAndBody(occupancyView{
		AccommodationID: acc.ID, From: rng.Start.Format(time.DateOnly), To: rng.End.Format(time.DateOnly),
		Capacity: acc.Availability, MaxOccupancy: occ, Available: occ < acc.Availability,
	})
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write occupancy body")
	}
}
