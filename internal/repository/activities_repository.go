package repository

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/pkg/cleanup"
	"github.com/limbo/ecotrack/pkg/entity"
)

// ActivitiesRepository reads the activity catalog. The catalog is maintained
// by the admin surface; this side never writes it.
type ActivitiesRepository struct {
	conn PgConnection
}

func NewActivitiesRepo(cfg DBConfig) *ActivitiesRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for activitiesRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for activitiesRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &ActivitiesRepository{
		conn: pool,
	}
}

func NewActivitiesRepoWithConn(conn PgConnection) *ActivitiesRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for activitiesRepo: " + err.Error())
	}
	return &ActivitiesRepository{
		conn: conn,
	}
}

func (ar *ActivitiesRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Activity, error) {
	var act entity.Activity
	act.ID = id
	row := ar.conn.QueryRow(ctx, `SELECT name, description, points, category, icon, is_active, created_at FROM activities WHERE id = $1 AND is_active = TRUE;`, id)
	if err := row.Scan(&act.Name, &act.Description, &act.Points, &act.Category, &act.Icon, &act.IsActive, &act.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrActivityNotFound
		}
		return nil, errors.New("getting activity by id error: " + err.Error())
	}
	return &act, nil
}

func (ar *ActivitiesRepository) ListActive(ctx context.Context) ([]*entity.Activity, error) {
	activities := make([]*entity.Activity, 0)
	rows, err := ar.conn.Query(ctx, `SELECT id, name, description, points, category, icon, is_active, created_at
		FROM activities WHERE is_active = TRUE ORDER BY category, name;`)
	if err != nil {
		return nil, errors.New("listing active activities error: " + err.Error())
	}
	defer rows.Close()
	for rows.Next() {
		a := entity.Activity{}
		err = rows.Scan(&a.ID, &a.Name, &a.Description, &a.Points, &a.Category, &a.Icon, &a.IsActive, &a.CreatedAt)
		if err != nil {
			return nil, errors.New("unmarhalling activity error: " + err.Error())
		}
		activities = append(activities, &a)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning: " + rows.Err().Error())
	}
	return activities, nil
}
