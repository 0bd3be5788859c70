package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/billbatista/acasinha-splits/session"
	"github.com/billbatista/acasinha-splits/user"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	registered, err := a.Users.Register(r.Context(), in.Email, in.Password, in.Name)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailExists):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, user.ErrBlankPassword), errors.Is(err, user.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			a.Logger.Error("failed to register user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp, sessionID, ok := a.signIn(w, r, registered)
	if !ok {
		return
	}
	a.emit("user.registered", registered.ID, map[string]string{
		"user_id":    registered.ID.String(),
		"email":      registered.Email,
		"session_id": sessionID,
	})
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := a.Users.GetByEmail(r.Context(), in.Email)
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		a.Logger.Error("failed to fetch user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := a.Users.VerifyPassword(found.PasswordHash, in.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	resp, sessionID, ok := a.signIn(w, r, found)
	if !ok {
		return
	}
	a.emit("user.logged_in", found.ID, map[string]string{
		"user_id":    found.ID.String(),
		"email":      found.Email,
		"session_id": sessionID,
	})
	writeJSON(w, http.StatusOK, resp)
}

// signIn issues a bearer token and, when sessions are configured, a session
// cookie. It writes the error response itself and reports ok=false.
func (a *API) signIn(w http.ResponseWriter, r *http.Request, u *user.User) (*authResponse, string, bool) {
	signed, expiresAt, err := a.Tokens.Issue(u.ID, u.Email)
	if err != nil {
		a.Logger.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, "", false
	}

	var sessionID string
	if a.Sessions != nil {
		sess, err := a.Sessions.Create(r.Context(), u.ID)
		if err != nil {
			a.Logger.Error("failed to create session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return nil, "", false
		}
		sessionID = sess.ID.String()
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    sess.Token,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HttpOnly: true,
			Secure:   a.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return &authResponse{User: u, Token: signed, ExpiresAt: expiresAt}, sessionID, true
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil && a.Sessions != nil {
		if err := a.Sessions.Delete(r.Context(), cookie.Value); err != nil {
			a.Logger.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	me, err := a.Users.GetByID(r.Context(), currentUser(r))
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.Logger.Error("failed to fetch user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "name can't be blank")
		return
	}

	userID := currentUser(r)
	if err := a.Users.UpdateName(r.Context(), userID, in.Name); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		a.Logger.Error("failed to update name", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.emit("user.name_updated", userID, map[string]string{
		"user_id": userID.String(),
		"name":    strings.TrimSpace(in.Name),
	})
	a.handleMe(w, r)
}

// handleFindUser resolves ?email= to a user so creators can name participants.
func (a *API) handleFindUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	found, err := a.Users.GetByEmail(r.Context(), email)
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		a.Logger.Error("failed to fetch user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, found)
}
