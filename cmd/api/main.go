// @title EcoTrack API
// @description Gamified green-activity tracker backend
// @BasePath /api/v1
// @schemes http
package main

import (
	"log"
	"log/slog"
	"time"

	"github.com/limbo/ecotrack/internal/api"
	"github.com/limbo/ecotrack/internal/notification"
	"github.com/limbo/ecotrack/internal/repository"
	"github.com/limbo/ecotrack/internal/scheduler"
	"github.com/limbo/ecotrack/internal/service"
	"github.com/limbo/ecotrack/pkg/cleanup"
	"github.com/limbo/ecotrack/pkg/config"
	jwtservice "github.com/limbo/ecotrack/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	cfg := config.New()
	dbCfg := repository.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}

	var notifier service.NotifierI = notification.NopDispatcher{}
	if redisAddr := cfg.GetString("REDIS_ADDRESS"); redisAddr != "" {
		notifier = notification.NewRedisDispatcher(redisAddr, cfg.GetString("REDIS_PASSWORD"), slog.Default())
	}

	usersRepo := repository.NewUsersRepo(&dbCfg)
	activitiesRepo := repository.NewActivitiesRepo(&dbCfg)
	ledgerRepo := repository.NewLedgerRepo(&dbCfg)
	streaksRepo := repository.NewStreaksRepo(&dbCfg)
	badgesRepo := repository.NewBadgesRepo(&dbCfg)
	challengesRepo := repository.NewChallengesRepo(&dbCfg)

	userService := service.NewUserService(usersRepo)
	streaksService := service.NewStreaksService(streaksRepo, notifier)
	badgesService := service.NewBadgesService(badgesRepo, ledgerRepo, streaksRepo, notifier)
	progressionService := service.NewProgressionService(usersRepo, activitiesRepo, ledgerRepo, streaksService, badgesService, slog.Default())
	challengesService := service.NewChallengesService(challengesRepo, ledgerRepo, badgesRepo, progressionService, notifier)
	progressionService.BindChallenges(challengesService)

	jobs := scheduler.New(streaksService, challengesService, cfg.GetDuration("SCHEDULER_INTERVAL", time.Hour), slog.Default())
	jobs.Start()
	cleanup.Register(&cleanup.Job{
		Name: "stopping scheduler",
		F:    jobs.Stop,
	})
	defer cleanup.CleanUp()

	serv := api.New(&api.ServicesList{
		UserService:        userService,
		ProgressionService: progressionService,
		StreaksService:     streaksService,
		BadgesService:      badgesService,
		ChallengesService:  challengesService,
		JwtService:         jwtservice.New(cfg.GetString("JWT_SECRET")),
	})
	err := serv.Run(cfg.GetString("API_ADDRESS"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
}
