package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/pkg/cleanup"
	"github.com/limbo/ecotrack/pkg/entity"
)

type StreaksRepository struct {
	conn PgConnection
}

func NewStreaksRepo(cfg DBConfig) *StreaksRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for streaksRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for streaksRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &StreaksRepository{
		conn: pool,
	}
}

func NewStreaksRepoWithConn(conn PgConnection) *StreaksRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for streaksRepo: " + err.Error())
	}
	return &StreaksRepository{
		conn: conn,
	}
}

func (sr *StreaksRepository) GetByUser(ctx context.Context, uid uuid.UUID) (*entity.Streak, error) {
	var streak entity.Streak
	streak.UserID = uid
	row := sr.conn.QueryRow(ctx, `SELECT current_streak, longest_streak, last_activity_date, streak_start_date, updated_at FROM streaks WHERE user_id = $1;`, uid)
	if err := row.Scan(&streak.CurrentStreak, &streak.LongestStreak, &streak.LastActivityDate, &streak.StreakStartDate, &streak.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrStreakNotFound
		}
		return nil, errors.New("getting streak by user error: " + err.Error())
	}
	return &streak, nil
}

func (sr *StreaksRepository) Upsert(ctx context.Context, streak *entity.Streak) error {
	if streak == nil {
		return errors.New("streak is nil")
	}
	_, err := sr.conn.Exec(
		ctx,
		`INSERT INTO streaks (user_id, current_streak, longest_streak, last_activity_date, streak_start_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET current_streak = $2, longest_streak = $3, last_activity_date = $4, streak_start_date = $5, updated_at = NOW();`,
		streak.UserID,
		streak.CurrentStreak,
		streak.LongestStreak,
		streak.LastActivityDate,
		streak.StreakStartDate,
	)
	if err != nil {
		return errors.New("upserting streak error: " + err.Error())
	}
	return nil
}

func (sr *StreaksRepository) Reset(ctx context.Context, uid uuid.UUID) (bool, error) {
	ct, err := sr.conn.Exec(
		ctx,
		`UPDATE streaks SET current_streak = 0, streak_start_date = NULL, updated_at = NOW() WHERE user_id = $1 AND current_streak > 0;`,
		uid,
	)
	if err != nil {
		return false, errors.New("resetting streak error: " + err.Error())
	}
	return ct.RowsAffected() > 0, nil
}

func (sr *StreaksRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*entity.Streak, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT user_id, current_streak, longest_streak, last_activity_date, streak_start_date, updated_at
		FROM streaks WHERE current_streak > 0 AND last_activity_date < $1;`,
		cutoff,
	)
	if err != nil {
		return nil, errors.New("listing expired streaks error: " + err.Error())
	}
	return scanStreakRows(rows)
}

func (sr *StreaksRepository) ListLastActiveBetween(ctx context.Context, from, to time.Time) ([]*entity.Streak, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT user_id, current_streak, longest_streak, last_activity_date, streak_start_date, updated_at
		FROM streaks WHERE current_streak > 0 AND last_activity_date >= $1 AND last_activity_date < $2;`,
		from,
		to,
	)
	if err != nil {
		return nil, errors.New("listing at-risk streaks error: " + err.Error())
	}
	return scanStreakRows(rows)
}

func (sr *StreaksRepository) TopStreaks(ctx context.Context, limit int) ([]*entity.StreakLeader, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT s.user_id, u.username, s.current_streak, s.longest_streak
		FROM streaks s JOIN users u ON u.id = s.user_id
		WHERE s.current_streak > 0 ORDER BY s.current_streak DESC LIMIT $1;`,
		limit,
	)
	if err != nil {
		return nil, errors.New("getting streak leaderboard error: " + err.Error())
	}
	defer rows.Close()
	leaders := make([]*entity.StreakLeader, 0, limit)
	for rows.Next() {
		l := entity.StreakLeader{}
		if err = rows.Scan(&l.UserID, &l.Username, &l.CurrentStreak, &l.LongestStreak); err != nil {
			return nil, errors.New("leader row parsing error: " + err.Error())
		}
		leaders = append(leaders, &l)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected leader rows error: " + rows.Err().Error())
	}
	return leaders, nil
}

func scanStreakRows(rows pgx.Rows) ([]*entity.Streak, error) {
	defer rows.Close()
	streaks := make([]*entity.Streak, 0)
	for rows.Next() {
		s := entity.Streak{}
		err := rows.Scan(&s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.LastActivityDate, &s.StreakStartDate, &s.UpdatedAt)
		if err != nil {
			return nil, errors.New("streak row parsing error: " + err.Error())
		}
		streaks = append(streaks, &s)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected streak rows error: " + rows.Err().Error())
	}
	return streaks, nil
}
