package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SmakGames/Companion/internal/middleware"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/recovery"
	"github.com/SmakGames/Companion/internal/services"
	"github.com/SmakGames/Companion/pkg/clientip"
	"github.com/SmakGames/Companion/pkg/utils"
)

type SignupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Username       string `json:"username"`
	SecurityAnswer string `json:"security_answer"`
	NewPassword    string `json:"new_password"`
}

type SecurityAnswerRequest struct {
	Answer string `json:"answer"`
}

type AuthResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	User    map[string]interface{} `json:"user,omitempty"`
	Token   string                 `json:"token,omitempty"`
}

func userMap(u *models.User, a *models.Account) map[string]interface{} {
	m := map[string]interface{}{
		"id":         u.ID.String(),
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"created_at": u.CreatedAt,
	}
	if a != nil {
		m["status"] = a.Status
		m["city"] = a.City
	}
	return m
}

// Signup registers a user, creates the 1:1 account, and signs the user in.
func Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := utils.ValidateUsername(req.Username); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < recovery.MinPasswordLength {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	if _, err := identities.FindByUsername(r.Context(), req.Username); err == nil {
		writeMessage(w, http.StatusConflict, "Username is already taken")
		return
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := &models.User{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: passwordHash,
	}

	// The profile rides along in the same transaction as the user row, so a
	// failed signup can always be retried with the same username.
	var profile *models.Account
	if req.Street != "" || req.City != "" || req.State != "" || req.ZipCode != "" ||
		req.PhoneNumber != "" || req.DateOfBirth != "" || req.Gender != "" {
		profile = &models.Account{
			Street:      req.Street,
			City:        req.City,
			State:       req.State,
			ZipCode:     req.ZipCode,
			PhoneNumber: req.PhoneNumber,
			DateOfBirth: req.DateOfBirth,
			Gender:      req.Gender,
		}
	}
	if err := identities.Create(r.Context(), user, profile); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := services.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Account created successfully",
		User:    userMap(user, nil),
		Token:   token,
	})
}

// Signin verifies credentials and issues a session token. The returned user
// carries the account's effective status, so an expired subscription shows
// as suspended right here.
func Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := identities.FindByUsername(r.Context(), req.Username)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	valid, err := utils.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !valid {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	acct, err := accounts.Get(r.Context(), user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Account unavailable")
		return
	}

	token, err := services.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		User:    userMap(user, acct),
		Token:   token,
	})
}

// Signout invalidates the current session.
func Signout(w http.ResponseWriter, r *http.Request) {
	_ = services.InvalidateSession(r.Context(), middleware.BearerToken(r))
	writeMessage(w, http.StatusOK, "Signed out")
}

// Me returns the authenticated user with the account's effective status.
func Me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r)
	acct, _ := middleware.CurrentAccount(r)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		User:    userMap(user, acct),
	})
}

// ResetPassword runs the rate-limited security-answer recovery flow. The
// rejected attempt count is surfaced on 429 so the client can communicate
// wait time; all sessions for the user are dropped on success.
func ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ip := clientip.FromRequest(r)
	user, err := recoverySvc.ResetPassword(r.Context(), ip, req.Username, req.SecurityAnswer, req.NewPassword)
	if err != nil {
		var tooMany *recovery.TooManyAttemptsError
		if errors.As(err, &tooMany) {
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"success":  false,
				"message":  "Too many reset attempts. Please try again later.",
				"attempts": tooMany.Attempts,
			})
			return
		}
		writeMessage(w, statusFor(err), "Password reset failed")
		return
	}

	_ = services.InvalidateUserSessions(r.Context(), user.ID)
	writeMessage(w, http.StatusOK, "Password has been reset")
}

// SetSecurityAnswer stores the digest of a new security answer for the
// authenticated user.
func SetSecurityAnswer(w http.ResponseWriter, r *http.Request) {
	var req SecurityAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, _ := middleware.CurrentUser(r)
	ip := clientip.FromRequest(r)
	if err := recoverySvc.SetSecurityAnswer(r.Context(), ip, user.ID, req.Answer); err != nil {
		var tooMany *recovery.TooManyAttemptsError
		if errors.As(err, &tooMany) {
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"success":  false,
				"message":  "Too many attempts. Please try again later.",
				"attempts": tooMany.Attempts,
			})
			return
		}
		writeMessage(w, statusFor(err), "Failed to update security answer")
		return
	}
	writeMessage(w, http.StatusOK, "Security answer updated")
}

// AccountStatus reports the account's effective status.
func AccountStatus(w http.ResponseWriter, r *http.Request) {
	acct, _ := middleware.CurrentAccount(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  acct.Status,
	})
}
