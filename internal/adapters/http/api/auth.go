package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/nebula/internal/domain/identity"
	"github.com/okian/nebula/pkg/logger"
)

// Identity errors whose message is safe to show to clients.
var identityKinds = []error{
	identity.ErrUserExists,
	identity.ErrWeakPassword,
	identity.ErrUserNotFound,
	identity.ErrCodeMismatch,
	identity.ErrCodeExpired,
	identity.ErrAlreadyConfirmed,
	identity.ErrInvalidCredentials,
	identity.ErrUserNotConfirmed,
}

type authHandler struct {
	idp    identity.Provider
	logger logger.Logger
}

type registerRequest struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Password          string `json:"password"`
}

type otpRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verificationRequired struct {
	RequiresVerification bool   `json:"requiresVerification"`
	Username             string `json:"username"`
}

func (h *authHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if blank(req.Email, req.PreferredUsername, req.Name, req.Password) {
		writeFail(w, http.StatusBadRequest, "Missing required fields: email, preferred_username, name, password")
		return
	}
	user, err := h.idp.Register(r.Context(), identity.Registration{
		Email:             req.Email,
		PreferredUsername: req.PreferredUsername,
		Name:              req.Name,
		Password:          req.Password,
	})
	if err != nil {
		h.logger.Warn(r.Context(), "registration failed", logger.String("username", req.PreferredUsername), logger.Error(err))
		writeFail(w, http.StatusBadRequest, clientMessage(err, "Registration failed"))
		return
	}
	writeOK(w, http.StatusCreated, "User registered successfully. Please check your email for verification code.", user)
}

func (h *authHandler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if blank(req.Username, req.Code) {
		writeFail(w, http.StatusBadRequest, "Missing required fields: username, code")
		return
	}
	if err := h.idp.Confirm(r.Context(), req.Username, req.Code); err != nil {
		writeFail(w, http.StatusBadRequest, clientMessage(err, "OTP verification failed"))
		return
	}
	writeOK(w, http.StatusOK, "Email verified successfully! You can now login.", nil)
}

func (h *authHandler) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if blank(req.Username) {
		writeFail(w, http.StatusBadRequest, "Missing required field: username")
		return
	}
	if err := h.idp.ResendCode(r.Context(), req.Username); err != nil {
		writeFail(w, http.StatusBadRequest, clientMessage(err, "Failed to resend verification code"))
		return
	}
	writeOK(w, http.StatusOK, "Verification code resent successfully!", nil)
}

func (h *authHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if blank(req.Username, req.Password) {
		writeFail(w, http.StatusBadRequest, "Missing required fields: username, password")
		return
	}
	tokens, err := h.idp.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, identity.ErrUserNotConfirmed) {
		writeJSON(w, http.StatusUnauthorized, envelope{
			Success: false,
			Message: identity.ErrUserNotConfirmed.Error(),
			Data:    verificationRequired{RequiresVerification: true, Username: req.Username},
		})
		return
	}
	if err != nil {
		writeFail(w, http.StatusUnauthorized, clientMessage(err, "Login failed"))
		return
	}
	writeOK(w, http.StatusOK, "Login successful", tokens)
}

// clientMessage returns the message of a known identity kind, or fallback.
func clientMessage(err error, fallback string) string {
	for _, kind := range identityKinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return fallback
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
