package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"rehearsal-scheduler-api/internal/auth"
	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

const refreshCookie = "refresh_token"

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if b.Email == "" || b.Password == "" || b.Name == "" {
		badRequest(w, "email, password and name are required")
		return
	}
	if len(b.Password) < 8 {
		badRequest(w, "password too short")
		return
	}

	hash, err := auth.HashPassword(b.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        b.Email,
		PasswordHash: hash,
		Name:         b.Name,
	}
	err = h.store.Update(r.Context(), func(tx store.Tx) error {
		return tx.CreateUser(r.Context(), u)
	})
	if err != nil {
		// unique violation = dup email, but don't reveal that
		writeJSON(w, http.StatusConflict, errBody{Error: "registration_failed", Message: "registration failed"})
		return
	}

	tok, err := auth.MakeToken(u.ID, h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": u.ID, "token": tok})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &b); err != nil || b.Email == "" || b.Password == "" {
		badRequest(w, "email and password are required")
		return
	}

	var u *model.User
	err := h.store.View(r.Context(), func(tx store.Tx) error {
		var err error
		u, err = tx.UserByEmail(r.Context(), b.Email)
		return err
	})
	if err != nil || !auth.CheckPassword(u.PasswordHash, b.Password) {
		writeJSON(w, http.StatusUnauthorized, errBody{Error: "unauthenticated", Message: "invalid credentials"})
		return
	}

	tok, err := auth.MakeToken(u.ID, h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.issueRefresh(w, r, u.ID, ""); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": u.ID, "name": u.Name, "token": tok})
}

// refresh rotates the refresh token: the presented one is revoked and linked
// to its replacement, so reuse of a stolen old token is detectable.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, errBody{Error: "unauthenticated", Message: "missing refresh token"})
		return
	}

	hash := auth.HashRefreshToken(c.Value)
	var rt *store.RefreshToken
	err = h.store.View(r.Context(), func(tx store.Tx) error {
		var err error
		rt, err = tx.RefreshTokenByHash(r.Context(), hash)
		return err
	})
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		writeJSON(w, http.StatusUnauthorized, errBody{Error: "unauthenticated", Message: "invalid refresh token"})
		return
	}

	if err := h.issueRefresh(w, r, rt.UserID, rt.ID); err != nil {
		h.writeError(w, err)
		return
	}
	tok, err := auth.MakeToken(rt.UserID, h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": rt.UserID, "token": tok})
}

// issueRefresh creates a new refresh token, revokes oldID when rotating,
// and sets the httponly cookie.
func (h *Handler) issueRefresh(w http.ResponseWriter, r *http.Request, userID, oldID string) error {
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return err
	}
	newID := uuid.New().String()
	err = h.store.Update(r.Context(), func(tx store.Tx) error {
		if oldID != "" {
			if err := tx.RevokeRefreshToken(r.Context(), oldID, newID); err != nil {
				return err
			}
		}
		return tx.CreateRefreshToken(r.Context(), &store.RefreshToken{
			ID:        newID,
			UserID:    userID,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(auth.RefreshTokenTTL),
		})
	})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    raw,
		HttpOnly: true,
		Path:     "/api/auth/",
		Expires:  time.Now().Add(auth.RefreshTokenTTL),
	})
	return nil
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	err := h.store.Update(r.Context(), func(tx store.Tx) error {
		return tx.RevokeAllRefreshTokens(r.Context(), uid(r))
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/api/auth/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}
