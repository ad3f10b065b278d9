package handlers

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/PhilHem/log-sentinel/backend/middleware"
	"github.com/PhilHem/log-sentinel/backend/models"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "Log-Sentinel"

// GenerateMFASecret creates a new TOTP key for the given email
func GenerateMFASecret(email string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: email,
	})
}

// ValidateMFACode checks if the provided code is valid for the given secret
func ValidateMFACode(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}

// generateQRCode creates a base64-encoded PNG QR code for the TOTP key
func generateQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

type mfaRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// MFASetup issues a fresh secret. It is not stored until MFAEnable confirms
// a code generated from it.
func (a *API) MFASetup(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	key, err := GenerateMFASecret(user.Email)
	if err != nil {
		slog.Error("failed to generate MFA secret", "source", "mfa", "error", err.Error())
		writeError(w, r, err)
		return
	}
	qrCode, err := generateQRCode(key)
	if err != nil {
		slog.Error("failed to generate QR code", "source", "mfa", "error", err.Error())
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":      key.Secret(),
		"url":         key.URL(),
		"qr_code":     qrCode,
		"mfa_enabled": user.MFAEnabled,
	})
}

func (a *API) MFAEnable(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req mfaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !ValidateMFACode(req.Secret, req.Code) {
		slog.Warn("MFA enable failed: invalid code", "source", "mfa", "user_id", user.ID)
		writeMessage(w, http.StatusBadRequest, "invalid code")
		return
	}

	user.MFAEnabled = true
	user.MFASecret = req.Secret
	if err := a.db.WithContext(r.Context()).Save(user).Error; err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("MFA enabled", "source", "mfa", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"mfa_enabled": true})
}

func (a *API) MFADisable(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req mfaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !ValidateMFACode(user.MFASecret, req.Code) {
		slog.Warn("MFA disable failed: invalid code", "source", "mfa", "user_id", user.ID)
		writeMessage(w, http.StatusBadRequest, "invalid code")
		return
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	if err := a.db.WithContext(r.Context()).Save(user).Error; err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("MFA disabled", "source", "mfa", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"mfa_enabled": false})
}

// MFAVerify completes a login that is waiting for its second factor.
func (a *API) MFAVerify(w http.ResponseWriter, r *http.Request) {
	session, _ := a.sessions.Get(r, middleware.SessionName)
	pendingID, ok := session.Values[middleware.SessionPendingMFA].(uint)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "no login awaiting verification")
		return
	}
	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, pendingID).Error; err != nil {
		writeMessage(w, http.StatusUnauthorized, "no login awaiting verification")
		return
	}
	var req mfaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !ValidateMFACode(user.MFASecret, req.Code) {
		slog.Warn("MFA verification failed: invalid code", "source", "mfa", "user_id", user.ID)
		writeMessage(w, http.StatusUnauthorized, "invalid code")
		return
	}

	delete(session.Values, middleware.SessionPendingMFA)
	session.Values[middleware.SessionUserID] = user.ID
	session.Values["email"] = user.Email
	session.Values["mfa_verified_at"] = time.Now().Unix()
	if err := session.Save(r, w); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("MFA verification successful", "source", "mfa", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(&user)})
}
