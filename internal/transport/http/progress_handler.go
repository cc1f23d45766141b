package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"studyquiz/internal/analytics"
	"studyquiz/internal/app"
	"studyquiz/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ProgressHandler serves profile, leaderboard and badge endpoints.
type ProgressHandler struct {
	progress *app.ProgressService
}

func NewProgressHandler(progress *app.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Register mounts the REST routes on mux.
func (h *ProgressHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /users/{userId}/profile", h.profile)
	mux.HandleFunc("GET /users/{userId}/quizzes", h.quizzes)
	mux.HandleFunc("GET /users/{userId}/badges", h.badgeBoard)
	mux.HandleFunc("POST /users/{userId}/badges/evaluate", h.evaluateBadges)
	mux.HandleFunc("GET /leaderboard", h.leaderboard)
}

type userPath struct {
	UserID string `validate:"required,max=128"`
}

type leaderboardQuery struct {
	Limit int `validate:"min=0,max=1000"`
}

type quizzesQuery struct {
	Subject string `validate:"max=128"`
	Topic   string `validate:"max=128"`
	Status  string `validate:"omitempty,oneof=completed pending"`
}

type evaluateResponse struct {
	NewlyEarned []domain.BadgeID `json:"newlyEarned"`
	Error       string           `json:"error,omitempty"`
}

type leaderboardResponse struct {
	Entries []analytics.LeaderboardEntry `json:"entries"`
}

func (h *ProgressHandler) profile(w http.ResponseWriter, r *http.Request) {
	path, ok := userFromPath(w, r)
	if !ok {
		return
	}
	profile, err := h.progress.Profile(r.Context(), path.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProgressHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	var query leaderboardQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		query.Limit = n
	}
	if err := validate.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("limit must be between 0 and 1000"))
		return
	}
	entries, err := h.progress.Leaderboard(r.Context(), query.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Entries: entries})
}

func (h *ProgressHandler) quizzes(w http.ResponseWriter, r *http.Request) {
	path, ok := userFromPath(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := quizzesQuery{Subject: q.Get("subject"), Topic: q.Get("topic"), Status: q.Get("status")}
	if err := validate.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("status must be completed or pending; subject and topic at most 128 characters"))
		return
	}
	catalog, err := h.progress.Quizzes(r.Context(), path.UserID, app.QuizFilter{
		Subject: query.Subject,
		Topic:   query.Topic,
		Status:  query.Status,
	})
	if errors.Is(err, domain.ErrUnknownStatus) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (h *ProgressHandler) evaluateBadges(w http.ResponseWriter, r *http.Request) {
	path, ok := userFromPath(w, r)
	if !ok {
		return
	}
	granted, err := h.progress.EvaluateBadges(r.Context(), path.UserID)
	resp := evaluateResponse{NewlyEarned: granted}
	if resp.NewlyEarned == nil {
		resp.NewlyEarned = []domain.BadgeID{}
	}
	if err != nil {
		var pe *domain.PersistenceError
		if !errors.As(err, &pe) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		// partial success: granted badges stay granted, failed ones retry on the next run
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProgressHandler) badgeBoard(w http.ResponseWriter, r *http.Request) {
	path, ok := userFromPath(w, r)
	if !ok {
		return
	}
	board, err := h.progress.BadgeBoard(r.Context(), path.UserID)
	var pe *domain.PersistenceError
	if err != nil && !errors.As(err, &pe) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err != nil {
		log.Printf("badge board for %s: %v", path.UserID, err)
	}
	writeJSON(w, http.StatusOK, board)
}

func userFromPath(w http.ResponseWriter, r *http.Request) (userPath, bool) {
	path := userPath{UserID: r.PathValue("userId")}
	if err := validate.Struct(path); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid userId"))
		return path, false
	}
	return path, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorPayload{Message: err.Error()})
}
