package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/pkg/cleanup"
	"github.com/limbo/ecotrack/pkg/entity"
)

// LedgerRepository owns the append-only user_activities log. Rows are never
// updated or deleted; every aggregate the engine keeps is derivable from here.
type LedgerRepository struct {
	conn PgConnection
}

func NewLedgerRepo(cfg DBConfig) *LedgerRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for ledgerRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for ledgerRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &LedgerRepository{
		conn: pool,
	}
}

func NewLedgerRepoWithConn(conn PgConnection) *LedgerRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for ledgerRepo: " + err.Error())
	}
	return &LedgerRepository{
		conn: conn,
	}
}

func (lr *LedgerRepository) Append(ctx context.Context, rec *entity.UserActivity) error {
	if rec == nil {
		return errors.New("ledger record is nil")
	}
	row := lr.conn.QueryRow(
		ctx,
		`INSERT INTO user_activities (user_id, activity_id, points_earned, completed_at) VALUES ($1, $2, $3, $4) RETURNING id;`,
		rec.UserID,
		rec.ActivityID,
		rec.PointsEarned,
		rec.CompletedAt,
	)
	if err := row.Scan(&rec.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return errorvalues.ErrUserNotFound
			}
		}
		return errors.New("appending ledger record error: " + err.Error())
	}
	return nil
}

func (lr *LedgerRepository) CountByUser(ctx context.Context, uid uuid.UUID) (int, error) {
	row := lr.conn.QueryRow(ctx, `SELECT COUNT(*) FROM user_activities WHERE user_id = $1;`, uid)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, errors.New("counting ledger records error: " + err.Error())
	}
	return count, nil
}

func (lr *LedgerRepository) SumPointsSince(ctx context.Context, uid uuid.UUID, since time.Time) (int, error) {
	row := lr.conn.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(points_earned), 0) FROM user_activities WHERE user_id = $1 AND completed_at >= $2;`,
		uid,
		since,
	)
	var sum int
	if err := row.Scan(&sum); err != nil {
		return 0, errors.New("summing ledger points error: " + err.Error())
	}
	return sum, nil
}

func (lr *LedgerRepository) CountSince(ctx context.Context, uid uuid.UUID, since time.Time, category *entity.Category) (int, error) {
	var (
		row   pgx.Row
		count int
	)
	if category != nil {
		row = lr.conn.QueryRow(
			ctx,
			`SELECT COUNT(*) FROM user_activities ua JOIN activities a ON a.id = ua.activity_id WHERE ua.user_id = $1 AND ua.completed_at >= $2 AND a.category = $3;`,
			uid,
			since,
			*category,
		)
	} else {
		row = lr.conn.QueryRow(ctx, `SELECT COUNT(*) FROM user_activities WHERE user_id = $1 AND completed_at >= $2;`, uid, since)
	}
	if err := row.Scan(&count); err != nil {
		return 0, errors.New("counting ledger records since error: " + err.Error())
	}
	return count, nil
}

func (lr *LedgerRepository) CompletedActivityIDsSince(ctx context.Context, uid uuid.UUID, since time.Time) ([]uuid.UUID, error) {
	rows, err := lr.conn.Query(
		ctx,
		`SELECT DISTINCT activity_id FROM user_activities WHERE user_id = $1 AND completed_at >= $2;`,
		uid,
		since,
	)
	if err != nil {
		return nil, errors.New("getting completed activity ids error: " + err.Error())
	}
	defer rows.Close()
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, errors.New("activity id row parsing error: " + err.Error())
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected ledger rows error: " + rows.Err().Error())
	}
	return ids, nil
}
