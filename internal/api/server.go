package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/limbo/ecotrack/internal/service"
)

type Server struct {
	mx                 *chi.Mux
	userService        service.UserServiceI
	progressionService service.ProgressionServiceI
	streaksService     service.StreaksServiceI
	badgesService      service.BadgesServiceI
	challengesService  service.ChallengesServiceI
	jwtService         JWTServiceI
}

type ServicesList struct {
	UserService        service.UserServiceI
	ProgressionService service.ProgressionServiceI
	StreaksService     service.StreaksServiceI
	BadgesService      service.BadgesServiceI
	ChallengesService  service.ChallengesServiceI
	JwtService         JWTServiceI
}

func New(servicesOptions *ServicesList) *Server {
	return &Server{
		mx:                 chi.NewMux(),
		userService:        servicesOptions.UserService,
		progressionService: servicesOptions.ProgressionService,
		streaksService:     servicesOptions.StreaksService,
		badgesService:      servicesOptions.BadgesService,
		challengesService:  servicesOptions.ChallengesService,
		jwtService:         servicesOptions.JwtService,
	}
}

func (s *Server) Run(address string) error {
	s.mx.Use(s.RequestIDMiddleware, s.SettingUpLoggerMiddleware)
	s.mx.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Get("/activities", s.ListActivities)
			r.Post("/activities/{id}/complete", s.CompleteActivity)
			r.Get("/streaks", s.GetStreak)
			r.Get("/streaks/leaderboard", s.StreakLeaderboard)
			r.Get("/badges", s.BadgeProgress)
			r.Get("/challenges", s.ListChallenges)
			r.Post("/challenges/{id}/join", s.JoinChallenge)
		})
	})
	return http.ListenAndServe(address, s.mx)
}
