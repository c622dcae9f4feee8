package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/service"
	"github.com/limbo/ecotrack/pkg/httputil"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req RegisterRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("registering error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.Register(ctx, &service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserExists) {
			logger.Error("registering error: existed user")
			httputil.WriteErrorResponse(w, http.StatusConflict, "user with such name already exists", nil)
			return
		}
		logger.Error("registering error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during registration", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, map[string]any{
		"uid": user.ID.String(),
	})
	logger.Info("successful registration")
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req LoginRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("login error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("login error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user with such name doesn't exist", nil)
			return
		case errors.Is(err, errorvalues.ErrWrongCredentials):
			logger.Error("login error: wrong password")
			httputil.WriteErrorResponse(w, http.StatusForbidden, "invalid username or password", nil)
			return
		default:
			logger.Error("login error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during login", nil)
			return
		}
	}
	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		logger.Error("login error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating token", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"uid":   user.ID.String(),
		"token": token,
	})
	logger.Info("successful login")
}

func (s *Server) ListActivities(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("list activities error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	activities, err := s.progressionService.ListActivities(ctx, uid, time.Now())
	if err != nil {
		logger.Error("list activities error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error listing activities", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"activities": activities,
	})
}

func (s *Server) CompleteActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("complete activity error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	activityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("complete activity error: invalid activity id")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity id", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	result, err := s.progressionService.CompleteActivity(ctx, uid, activityID)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrActivityNotFound):
			logger.Error("complete activity error: unknown activity")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "activity not found", nil)
			return
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("complete activity error: unknown user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user not found", nil)
			return
		default:
			logger.Error("complete activity error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error completing activity", nil)
			return
		}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, result)
	logger.Info("activity completed", slog.Int("points", result.PointsEarned))
}

func (s *Server) GetStreak(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("get streak error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	status, err := s.streaksService.Status(ctx, uid, time.Now())
	if err != nil {
		logger.Error("get streak error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error getting streak", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, status)
}

func (s *Server) StreakLeaderboard(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	limit := 10
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 || parsed > 100 {
			logger.Error("streak leaderboard error: invalid limit")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid limit param", nil)
			return
		}
		limit = parsed
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	leaders, err := s.streaksService.Leaderboard(ctx, limit)
	if err != nil {
		logger.Error("streak leaderboard error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error getting leaderboard", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"leaderboard": leaders,
	})
}

func (s *Server) BadgeProgress(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("badge progress error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.GetByID(ctx, uid)
	if err != nil {
		logger.Error("badge progress error: user lookup error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error getting badges", nil)
		return
	}
	progress, err := s.badgesService.Progress(ctx, user)
	if err != nil {
		logger.Error("badge progress error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error getting badges", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"badges": progress,
	})
}

func (s *Server) ListChallenges(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("list challenges error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	challenges, err := s.challengesService.ListActive(ctx, uid, time.Now())
	if err != nil {
		logger.Error("list challenges error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error listing challenges", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"challenges": challenges,
	})
}

func (s *Server) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("join challenge error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	challengeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("join challenge error: invalid challenge id")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid challenge id", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	result, err := s.challengesService.Join(ctx, uid, challengeID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrChallengeNotFound):
			logger.Error("join challenge error: unknown challenge")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "challenge not found", nil)
			return
		case errors.Is(err, errorvalues.ErrChallengeEnded):
			logger.Error("join challenge error: ended challenge")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "challenge already ended", nil)
			return
		case errors.Is(err, errorvalues.ErrAlreadyJoined):
			logger.Error("join challenge error: duplicate join")
			httputil.WriteErrorResponse(w, http.StatusConflict, "challenge already joined", nil)
			return
		default:
			logger.Error("join challenge error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error joining challenge", nil)
			return
		}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, result)
	logger.Info("challenge joined", slog.Int("progress", result.Progress))
}
