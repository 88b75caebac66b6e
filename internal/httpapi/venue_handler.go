package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

type venueJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Capacity int    `json:"capacity,omitempty"`
}

func toVenueJSON(v *model.Venue) venueJSON {
	return venueJSON{ID: v.ID, Name: v.Name, Address: v.Address, Capacity: v.Capacity}
}

func (h *Handler) createVenue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		Capacity int    `json:"capacity"`
	}
	if err := decode(r, &body); err != nil || body.Name == "" || body.Address == "" {
		badRequest(w, "name and address are required")
		return
	}
	if body.Capacity < 0 {
		badRequest(w, "capacity cannot be negative")
		return
	}

	v := &model.Venue{
		ID:       uuid.New().String(),
		Name:     body.Name,
		Address:  body.Address,
		Capacity: body.Capacity,
	}
	err := h.store.Update(r.Context(), func(tx store.Tx) error {
		return tx.CreateVenue(r.Context(), v)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVenueJSON(v))
}

func (h *Handler) listVenues(w http.ResponseWriter, r *http.Request) {
	var venues []model.Venue
	err := h.store.View(r.Context(), func(tx store.Tx) error {
		var err error
		venues, err = tx.Venues(r.Context())
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]venueJSON, 0, len(venues))
	for i := range venues {
		out = append(out, toVenueJSON(&venues[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getVenue(w http.ResponseWriter, r *http.Request) {
	var v *model.Venue
	err := h.store.View(r.Context(), func(tx store.Tx) error {
		var err error
		v, err = tx.Venue(r.Context(), r.PathValue("id"))
		return err
	})
	if err != nil {
		h.bandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVenueJSON(v))
}
