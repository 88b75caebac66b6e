package httpapi

import (
	"net/http"
	"time"

	"rehearsal-scheduler-api/internal/engine"
	"rehearsal-scheduler-api/internal/model"
)

func (h *Handler) createRehearsal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BandID      string `json:"bandId"`
		VenueID     string `json:"venueId"`
		Title       string `json:"title"`
		Description string `json:"description"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if body.BandID == "" || body.VenueID == "" {
		badRequest(w, "bandId and venueId are required")
		return
	}
	start, err := parseTime(body.StartTime)
	if err != nil {
		badRequest(w, "startTime must be RFC3339")
		return
	}
	end, err := parseTime(body.EndTime)
	if err != nil {
		badRequest(w, "endTime must be RFC3339")
		return
	}

	reh, err := h.engine.ScheduleRehearsal(r.Context(), uid(r), engine.ScheduleInput{
		BandID:      body.BandID,
		VenueID:     body.VenueID,
		Title:       body.Title,
		Description: body.Description,
		Start:       start,
		End:         end,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRehearsalJSON(reh))
}

func (h *Handler) listRehearsals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := engine.ListFilter{
		BandID: q.Get("bandId"),
		Status: model.RehearsalStatus(q.Get("status")),
	}
	if s := q.Get("from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			badRequest(w, "from must be RFC3339")
			return
		}
		f.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			badRequest(w, "to must be RFC3339")
			return
		}
		f.To = t
	}

	rehearsals, err := h.engine.ListRehearsals(r.Context(), uid(r), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]rehearsalJSON, 0, len(rehearsals))
	for i := range rehearsals {
		out = append(out, toRehearsalJSON(&rehearsals[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getRehearsal(w http.ResponseWriter, r *http.Request) {
	reh, err := h.engine.GetRehearsal(r.Context(), uid(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRehearsalJSON(reh))
}

func (h *Handler) updateRehearsal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		VenueID     *string `json:"venueId"`
		StartTime   *string `json:"startTime"`
		EndTime     *string `json:"endTime"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid json")
		return
	}

	patch := engine.UpdatePatch{
		Title:       body.Title,
		Description: body.Description,
		VenueID:     body.VenueID,
	}
	if body.StartTime != nil {
		t, err := parseTime(*body.StartTime)
		if err != nil {
			badRequest(w, "startTime must be RFC3339")
			return
		}
		patch.Start = &t
	}
	if body.EndTime != nil {
		t, err := parseTime(*body.EndTime)
		if err != nil {
			badRequest(w, "endTime must be RFC3339")
			return
		}
		patch.End = &t
	}

	reh, err := h.engine.UpdateRehearsal(r.Context(), uid(r), r.PathValue("id"), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRehearsalJSON(reh))
}

// cancelRehearsal is DELETE on the resource; the row survives with status
// canceled, matching the engine's no-hard-delete rule.
func (h *Handler) cancelRehearsal(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelRehearsal(r.Context(), uid(r), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeRehearsal(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CompleteRehearsal(r.Context(), uid(r), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Response string `json:"response"`
	}
	if err := decode(r, &body); err != nil || body.Response == "" {
		badRequest(w, "response is required")
		return
	}

	err := h.engine.RespondToRehearsal(r.Context(), uid(r), r.PathValue("id"), model.Response(body.Response))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attendanceRecordJSON struct {
	MemberID    string `json:"memberId"`
	Response    string `json:"response"`
	RespondedAt string `json:"respondedAt,omitempty"`
}

func (h *Handler) attendance(w http.ResponseWriter, r *http.Request) {
	sum, err := h.engine.Summary(r.Context(), uid(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	records := make([]attendanceRecordJSON, 0, len(sum.Records))
	for _, rec := range sum.Records {
		rj := attendanceRecordJSON{MemberID: rec.MemberID, Response: string(rec.Response)}
		if rec.RespondedAt != nil {
			rj.RespondedAt = rec.RespondedAt.UTC().Format(time.RFC3339)
		}
		records = append(records, rj)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attending": sum.Attending,
		"declined":  sum.Declined,
		"pending":   sum.Pending,
		"records":   records,
	})
}
