package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/nebula/internal/app"
	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/logger"
)

type leaderboardHandler struct {
	scores ScoreService
	logger logger.Logger
}

type scoreRequest struct {
	Score any `json:"score"`
}

// handleSubmitScore handles POST /score for the authenticated caller.
func (h *leaderboardHandler) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, ErrUnauthorized.Error())
		return
	}
	var req scoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	entries, err := h.scores.SubmitScore(r.Context(), user.UserID, user.UserName, req.Score)
	switch {
	case err == nil:
		writeOK(w, http.StatusCreated, "Score submitted successfully", entries)
	case errors.Is(err, service.ErrMissingScore):
		writeFail(w, http.StatusBadRequest, service.ErrMissingScore.Error())
	case errors.Is(err, service.ErrInvalidScore):
		writeFail(w, http.StatusBadRequest, service.ErrInvalidScore.Error())
	case errors.Is(err, service.ErrMissingUser):
		writeFail(w, http.StatusUnauthorized, ErrUnauthorized.Error())
	default:
		writeFail(w, http.StatusBadRequest, err.Error())
	}
}

// handleGetLeaderboard handles GET /leaderboard.
func (h *leaderboardHandler) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := h.scores.Leaderboard(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "leaderboard read failed", logger.Error(err))
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(top) == 0 {
		writeOK(w, http.StatusOK, "No scores found", []model.ScoreEntry{})
		return
	}
	writeOK(w, http.StatusOK, "Leaderboard retrieved successfully", top)
}

// handleDeleteLeaderboard handles DELETE /leaderboard.
func (h *leaderboardHandler) handleDeleteLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := h.scores.ClearLeaderboard(r.Context())
	if err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	if n == 0 {
		writeOK(w, http.StatusOK, "No scores to delete", []model.ScoreEntry{})
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("Successfully deleted %d scores", n), []model.ScoreEntry{})
}
