// Package httpapi is the REST surface over the scheduling engine. It owns
// request decoding and the mapping from engine error codes to HTTP status;
// every scheduling decision lives in the engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"rehearsal-scheduler-api/internal/engine"
	"rehearsal-scheduler-api/internal/middleware"
	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

type Handler struct {
	engine *engine.Engine
	store  store.Store
	secret string
	log    zerolog.Logger
}

func New(eng *engine.Engine, st store.Store, secret string, log zerolog.Logger) *Handler {
	return &Handler{engine: eng, store: st, secret: secret, log: log}
}

// Routes wires the full API. Credential endpoints are open and rate
// limited; everything else sits behind the bearer-token middleware.
func (h *Handler) Routes() http.Handler {
	rl := middleware.NewRateLimiter(5, 10)

	authed := http.NewServeMux()
	authed.HandleFunc("POST /api/auth/logout", h.logout)

	authed.HandleFunc("POST /api/bands", h.createBand)
	authed.HandleFunc("GET /api/bands", h.listBands)
	authed.HandleFunc("GET /api/bands/{id}", h.getBand)
	authed.HandleFunc("POST /api/bands/{id}/members", h.addMember)
	authed.HandleFunc("DELETE /api/bands/{id}/members/{memberId}", h.removeMember)

	authed.HandleFunc("POST /api/venues", h.createVenue)
	authed.HandleFunc("GET /api/venues", h.listVenues)
	authed.HandleFunc("GET /api/venues/{id}", h.getVenue)

	authed.HandleFunc("POST /api/rehearsals", h.createRehearsal)
	authed.HandleFunc("GET /api/rehearsals", h.listRehearsals)
	authed.HandleFunc("GET /api/rehearsals/{id}", h.getRehearsal)
	authed.HandleFunc("PUT /api/rehearsals/{id}", h.updateRehearsal)
	authed.HandleFunc("DELETE /api/rehearsals/{id}", h.cancelRehearsal)
	authed.HandleFunc("POST /api/rehearsals/{id}/complete", h.completeRehearsal)
	authed.HandleFunc("PUT /api/rehearsals/{id}/attendance", h.respond)
	authed.HandleFunc("GET /api/rehearsals/{id}/attendance", h.attendance)

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/register", rl.Limit(http.HandlerFunc(h.register)))
	mux.Handle("POST /api/auth/login", rl.Limit(http.HandlerFunc(h.login)))
	mux.HandleFunc("POST /api/auth/refresh", h.refresh)
	mux.Handle("/api/", middleware.Auth(h.secret, authed))
	return mux
}

func uid(r *http.Request) string {
	return middleware.UserID(r.Context())
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	ConflictingIDs []string `json:"conflictingIds,omitempty"`
}

var httpStatus = map[engine.Code]int{
	engine.CodeNotAuthorized: http.StatusForbidden,
	engine.CodeNotFound:      http.StatusNotFound,
	engine.CodeInvalidInput:  http.StatusBadRequest,
	engine.CodeInvalidState:  http.StatusConflict,
	engine.CodeConflict:      http.StatusConflict,
	engine.CodeUnavailable:   http.StatusServiceUnavailable,
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var e *engine.Error
	if errors.As(err, &e) {
		writeJSON(w, httpStatus[e.Code], errBody{
			Error:          string(e.Code),
			Message:        e.Message,
			ConflictingIDs: e.ConflictingIDs,
		})
		return
	}
	h.log.Error().Err(err).Msg("internal error")
	writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal", Message: "internal error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid_input", Message: msg})
}

// band/venue handlers talk to the store directly; their small error set is
// mapped here instead of going through the engine taxonomy.
var (
	errNotMember  = errors.New("not a member of this band")
	errNotLeader  = errors.New("leader role required")
	errSoleLeader = errors.New("a band's only leader cannot be removed")
)

func (h *Handler) bandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotMember), errors.Is(err, errNotLeader):
		writeJSON(w, http.StatusForbidden, errBody{Error: "not_authorized", Message: err.Error()})
	case errors.Is(err, errSoleLeader):
		writeJSON(w, http.StatusConflict, errBody{Error: "invalid_state", Message: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody{Error: "not_found", Message: "not found"})
	default:
		h.writeError(w, err)
	}
}

// rehearsalJSON mirrors the wire shape the web client consumes.
type rehearsalJSON struct {
	ID          string `json:"id"`
	BandID      string `json:"bandId"`
	VenueID     string `json:"venueId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Status      string `json:"status"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toRehearsalJSON(r *model.Rehearsal) rehearsalJSON {
	return rehearsalJSON{
		ID:          r.ID,
		BandID:      r.BandID,
		VenueID:     r.VenueID,
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime.UTC().Format(time.RFC3339),
		EndTime:     r.EndTime.UTC().Format(time.RFC3339),
		Status:      string(r.Status),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
