package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/middleware"
	"github.com/SmakGames/Companion/internal/models"
)

type TalkRequest struct {
	Message string `json:"message"`
}

type TalkResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply"`
	Message string `json:"message,omitempty"`
}

type HistoryResponse struct {
	Success  bool                 `json:"success"`
	Messages []models.ChatMessage `json:"messages"`
}

// Talk runs one conversation turn. Generator failures still answer with a
// friendly fallback reply, carried on the matching error status; the user's
// message is persisted either way.
func Talk(w http.ResponseWriter, r *http.Request) {
	var req TalkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, _ := middleware.CurrentUser(r)
	acct, _ := middleware.CurrentAccount(r)

	reply, err := conversation.Talk(r.Context(), user, acct, req.Message)
	if err != nil {
		if reply != "" {
			// Generation failed after the inbound message was persisted;
			// surface the fallback reply with the mapped status.
			writeJSON(w, statusFor(err), TalkResponse{Success: false, Reply: reply})
			return
		}
		switch {
		case errors.Is(err, common.ErrValidation):
			writeMessage(w, http.StatusBadRequest, "Message is required and must be at most 5000 characters")
		case errors.Is(err, common.ErrInvalidState):
			writeMessage(w, http.StatusForbidden, "Account is suspended")
		default:
			writeMessage(w, http.StatusInternalServerError, "Failed to process message")
		}
		return
	}

	writeJSON(w, http.StatusOK, TalkResponse{Success: true, Reply: reply})
}

// History returns up to limit (default 10, max 100) most recent messages for
// the authenticated user, oldest first.
func History(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r)

	limit := 10
	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if parsed, err := strconv.Atoi(lStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	msgs, err := history.Recent(r.Context(), user.ID.String(), limit)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Messages: msgs})
}

// Profile returns the authenticated user's profile together with their last
// ten chat entries.
func Profile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r)
	acct, _ := middleware.CurrentAccount(r)

	msgs, err := history.Recent(r.Context(), user.ID.String(), 10)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}

	historyOut := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		historyOut = append(historyOut, map[string]interface{}{
			"message": m.Text,
			"is_user": m.IsUserMessage,
			"time":    m.Timestamp,
		})
	}

	preferred := user.FirstName
	if preferred == "" {
		preferred = user.Username
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"username":       user.Username,
		"preferred_name": preferred,
		"account_status": acct.Status,
		"city":           acct.City,
		"chat_history":   historyOut,
	})
}

type ProfileRequest struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	PhoneNumber string `json:"phone_number"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
}

// UpdateProfile replaces the authenticated user's free-form profile fields.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, _ := middleware.CurrentUser(r)
	acct := &models.Account{
		UserID:      user.ID,
		Street:      req.Street,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	}
	if err := accounts.UpdateProfile(r.Context(), acct); err != nil {
		writeMessage(w, statusFor(err), "Failed to update profile")
		return
	}
	writeMessage(w, http.StatusOK, "Profile updated")
}

// BuildContext returns the context window that would feed the generation
// call for the given message, without calling the generator. Useful for
// clients that drive their own generation and for debugging prompts.
func BuildContext(w http.ResponseWriter, r *http.Request) {
	var req TalkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, _ := middleware.CurrentUser(r)
	acct, _ := middleware.CurrentAccount(r)

	window, err := builder.Build(r.Context(), user.ID.String(), acct.City, req.Message, nil)
	if err != nil {
		writeMessage(w, statusFor(err), "Failed to build context")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": window,
	})
}
