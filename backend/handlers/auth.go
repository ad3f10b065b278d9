package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PhilHem/log-sentinel/backend/middleware"
	"github.com/PhilHem/log-sentinel/backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

func viewOf(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, MFAEnabled: u.MFAEnabled}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// startSession marks the user fully authenticated.
func (a *API) startSession(w http.ResponseWriter, r *http.Request, u *models.User) error {
	session, _ := a.sessions.Get(r, middleware.SessionName)
	delete(session.Values, middleware.SessionPendingMFA)
	session.Values[middleware.SessionUserID] = u.ID
	session.Values["email"] = u.Email
	return session.Save(r, w)
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	email := normalizeEmail(c.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeMessage(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(c.Password) < minPasswordLength {
		slog.Warn("registration failed: password too short", "source", "auth", "email", email)
		writeMessage(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	var existing models.User
	if err := a.db.WithContext(r.Context()).Where("email = ?", email).First(&existing).Error; err == nil {
		slog.Warn("registration failed: email exists", "source", "auth", "email", email)
		writeMessage(w, http.StatusConflict, "email already registered")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := models.User{Email: email, Password: string(hashed)}
	if err := a.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user registered", "source", "auth", "user_id", user.ID, "email", email)

	if err := a.startSession(w, r, &user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": viewOf(&user)})
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	email := normalizeEmail(c.Email)

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, r, err)
			return
		}
		slog.Warn("login failed: user not found", "source", "auth", "email", email)
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(c.Password)); err != nil {
		slog.Warn("login failed: invalid password", "source", "auth", "email", email)
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if user.MFAEnabled {
		session, _ := a.sessions.Get(r, middleware.SessionName)
		delete(session.Values, middleware.SessionUserID)
		session.Values[middleware.SessionPendingMFA] = user.ID
		if err := session.Save(r, w); err != nil {
			writeError(w, r, err)
			return
		}
		slog.Info("login awaiting second factor", "source", "auth", "user_id", user.ID)
		writeJSON(w, http.StatusOK, map[string]any{"mfa_required": true})
		return
	}

	if err := a.startSession(w, r, &user); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user logged in", "source", "auth", "user_id", user.ID, "email", email)
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(&user)})
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := a.sessions.Get(r, middleware.SessionName)
	userID, _ := session.Values[middleware.SessionUserID].(uint)
	slog.Info("user logged out", "source", "auth", "user_id", userID)

	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1
	session.Save(r, w)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// currentUser loads the authenticated user.
func (a *API) currentUser(r *http.Request) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, userID(r)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}
