package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

type memberJSON struct {
	MemberID string `json:"memberId"`
	Role     string `json:"role"`
}

type bandJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Members []memberJSON `json:"members,omitempty"`
}

func toBandJSON(b *model.Band) bandJSON {
	out := bandJSON{ID: b.ID, Name: b.Name}
	for _, m := range b.Members {
		out.Members = append(out.Members, memberJSON{MemberID: m.MemberID, Role: string(m.Role)})
	}
	return out
}

func (h *Handler) createBand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil || body.Name == "" {
		badRequest(w, "name is required")
		return
	}

	b := &model.Band{
		ID:        uuid.New().String(),
		Name:      body.Name,
		CreatedBy: uid(r),
		Members: []model.Membership{
			{MemberID: uid(r), Role: model.RoleLeader, JoinedAt: time.Now()},
		},
	}
	b.Members[0].BandID = b.ID
	err := h.store.Update(r.Context(), func(tx store.Tx) error {
		return tx.CreateBand(r.Context(), b)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBandJSON(b))
}

func (h *Handler) listBands(w http.ResponseWriter, r *http.Request) {
	var bands []model.Band
	err := h.store.View(r.Context(), func(tx store.Tx) error {
		var err error
		bands, err = tx.BandsForMember(r.Context(), uid(r))
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]bandJSON, 0, len(bands))
	for i := range bands {
		out = append(out, toBandJSON(&bands[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getBand(w http.ResponseWriter, r *http.Request) {
	bandID := r.PathValue("id")
	var band *model.Band
	err := h.store.View(r.Context(), func(tx store.Tx) error {
		b, err := tx.Band(r.Context(), bandID)
		if err != nil {
			return err
		}
		if _, member, err := tx.RoleOf(r.Context(), uid(r), bandID); err != nil {
			return err
		} else if !member {
			return errNotMember
		}
		band = b
		return nil
	})
	if err != nil {
		h.bandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBandJSON(band))
}

// addMember grants membership; leaders only. The target must already have
// an account, bands have no invite flow.
func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	bandID := r.PathValue("id")
	var body struct {
		MemberID string `json:"memberId"`
		Role     string `json:"role"`
	}
	if err := decode(r, &body); err != nil || body.MemberID == "" {
		badRequest(w, "memberId is required")
		return
	}
	role := model.Role(body.Role)
	if body.Role == "" {
		role = model.RoleMember
	}
	if !role.Valid() {
		badRequest(w, "role must be leader or member")
		return
	}

	err := h.store.Update(r.Context(), func(tx store.Tx) error {
		if _, err := tx.Band(r.Context(), bandID); err != nil {
			return err
		}
		if err := requireLeader(r, tx, bandID); err != nil {
			return err
		}
		if _, err := tx.UserByID(r.Context(), body.MemberID); err != nil {
			return err
		}
		return tx.PutMembership(r.Context(), &model.Membership{
			BandID:   bandID,
			MemberID: body.MemberID,
			Role:     role,
			JoinedAt: time.Now(),
		})
	})
	if err != nil {
		h.bandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	bandID := r.PathValue("id")
	memberID := r.PathValue("memberId")

	err := h.store.Update(r.Context(), func(tx store.Tx) error {
		if _, err := tx.Band(r.Context(), bandID); err != nil {
			return err
		}
		if err := requireLeader(r, tx, bandID); err != nil {
			return err
		}
		if memberID == uid(r) && soleLeader(r, tx, bandID) {
			return errSoleLeader
		}
		return tx.DeleteMembership(r.Context(), bandID, memberID)
	})
	if err != nil {
		h.bandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireLeader(r *http.Request, tx store.Tx, bandID string) error {
	role, member, err := tx.RoleOf(r.Context(), uid(r), bandID)
	if err != nil {
		return err
	}
	if !member || role != model.RoleLeader {
		return errNotLeader
	}
	return nil
}

func soleLeader(r *http.Request, tx store.Tx, bandID string) bool {
	members, err := tx.Members(r.Context(), bandID)
	if err != nil {
		return true
	}
	leaders := 0
	for _, m := range members {
		if m.Role == model.RoleLeader {
			leaders++
		}
	}
	return leaders <= 1
}
