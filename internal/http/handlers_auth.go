package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"receiptdash/internal/identity"
	"receiptdash/internal/log"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Code     string `json:"code"`
}

func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return credentialsRequest{}, err
	}
	return req, nil
}

// identityStatus maps identity client errors to HTTP status codes. Local
// validation failures are the caller's fault; everything else came back from
// the provider and is surfaced verbatim.
func identityStatus(err error) int {
	if errors.Is(err, identity.ErrMissingFields) || errors.Is(err, identity.ErrPasswordTooShort) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if s.idp == nil {
		writeMessage(w, http.StatusNotImplemented, "identity provider not configured", toastError)
		return
	}

	req, err := decodeCredentials(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body", toastError)
		return
	}

	if err := s.idp.SignUp(r.Context(), req.Email, req.Password, req.Name); err != nil {
		writeMessage(w, identityStatus(err), err.Error(), toastError)
		return
	}

	writeMessage(w, http.StatusCreated, "Account created! Check your email for a confirmation code.", toastSuccess)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if s.idp == nil {
		writeMessage(w, http.StatusNotImplemented, "identity provider not configured", toastError)
		return
	}

	req, err := decodeCredentials(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body", toastError)
		return
	}

	if err := s.idp.ConfirmSignUp(r.Context(), req.Email, req.Code); err != nil {
		writeMessage(w, identityStatus(err), err.Error(), toastError)
		return
	}

	writeMessage(w, http.StatusOK, "Email confirmed! You can now sign in.", toastSuccess)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if s.idp == nil {
		writeMessage(w, http.StatusNotImplemented, "identity provider not configured", toastError)
		return
	}

	req, err := decodeCredentials(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body", toastError)
		return
	}

	res, err := s.idp.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrMissingFields) {
			writeMessage(w, http.StatusUnprocessableEntity, err.Error(), toastError)
			return
		}
		writeMessage(w, http.StatusUnauthorized, err.Error(), toastError)
		return
	}

	if res.Outcome == identity.OutcomeNewPasswordRequired {
		writeJSON(w, http.StatusOK, map[string]string{"outcome": string(res.Outcome)})
		return
	}

	s.controller.SetCredential(res.Token, req.Email)
	s.snapshotCache.Flush()

	// Load the dataset in the background so sign-in stays snappy.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.controller.Refresh(ctx); err != nil {
			s.logger.WarnContext(ctx, "Post sign-in refresh failed", log.FieldError, err)
		}
		s.snapshotCache.Flush()
	}()

	writeJSON(w, http.StatusOK, map[string]string{
		"outcome": string(res.Outcome),
		"email":   req.Email,
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	s.controller.ClearCredential()
	s.snapshotCache.Flush()
	writeMessage(w, http.StatusOK, "Signed out.", toastSuccess)
}
