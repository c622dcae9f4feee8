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

type ChallengesRepository struct {
	conn PgConnection
}

func NewChallengesRepo(cfg DBConfig) *ChallengesRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for challengesRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for challengesRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &ChallengesRepository{
		conn: pool,
	}
}

func NewChallengesRepoWithConn(conn PgConnection) *ChallengesRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for challengesRepo: " + err.Error())
	}
	return &ChallengesRepository{
		conn: conn,
	}
}

func (cr *ChallengesRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	var ch entity.Challenge
	ch.ID = id
	row := cr.conn.QueryRow(ctx, `SELECT name, description, type, target_type, target_value, target_category, reward_points, reward_badge_id, start_date, end_date, is_active, created_at
		FROM challenges WHERE id = $1;`, id)
	err := row.Scan(&ch.Name, &ch.Description, &ch.Type, &ch.TargetType, &ch.TargetValue, &ch.TargetCategory,
		&ch.RewardPoints, &ch.RewardBadgeID, &ch.StartDate, &ch.EndDate, &ch.IsActive, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrChallengeNotFound
		}
		return nil, errors.New("getting challenge by id error: " + err.Error())
	}
	return &ch, nil
}

func (cr *ChallengesRepository) ListActiveAt(ctx context.Context, now time.Time) ([]*entity.Challenge, error) {
	rows, err := cr.conn.Query(ctx, `SELECT id, name, description, type, target_type, target_value, target_category, reward_points, reward_badge_id, start_date, end_date, is_active, created_at
		FROM challenges WHERE is_active = TRUE AND start_date <= $1 AND end_date >= $1;`, now)
	if err != nil {
		return nil, errors.New("listing active challenges error: " + err.Error())
	}
	defer rows.Close()
	challenges := make([]*entity.Challenge, 0)
	for rows.Next() {
		ch := entity.Challenge{}
		err = rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.Type, &ch.TargetType, &ch.TargetValue, &ch.TargetCategory,
			&ch.RewardPoints, &ch.RewardBadgeID, &ch.StartDate, &ch.EndDate, &ch.IsActive, &ch.CreatedAt)
		if err != nil {
			return nil, errors.New("challenge row parsing error: " + err.Error())
		}
		challenges = append(challenges, &ch)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected challenge rows error: " + rows.Err().Error())
	}
	return challenges, nil
}

func (cr *ChallengesRepository) Create(ctx context.Context, ch *entity.Challenge) (uuid.UUID, error) {
	if ch == nil {
		return uuid.UUID{}, errors.New("challenge is nil")
	}
	var id uuid.UUID
	row := cr.conn.QueryRow(
		ctx,
		`INSERT INTO challenges (name, description, type, target_type, target_value, target_category, reward_points, reward_badge_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id;`,
		ch.Name,
		ch.Description,
		ch.Type,
		ch.TargetType,
		ch.TargetValue,
		ch.TargetCategory,
		ch.RewardPoints,
		ch.RewardBadgeID,
		ch.StartDate,
		ch.EndDate,
	)
	if err := row.Scan(&id); err != nil {
		return uuid.UUID{}, errors.New("creating challenge error: " + err.Error())
	}
	return id, nil
}

func (cr *ChallengesRepository) ExistsInWindow(ctx context.Context, ctype entity.ChallengeType, from, to time.Time) (bool, error) {
	var exists bool
	row := cr.conn.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM challenges WHERE type = $1 AND start_date >= $2 AND start_date <= $3);`,
		ctype,
		from,
		to,
	)
	if err := row.Scan(&exists); err != nil {
		return false, errors.New("inspecting if challenge exists error: " + err.Error())
	}
	return exists, nil
}

func (cr *ChallengesRepository) Join(ctx context.Context, uc *entity.UserChallenge) (int64, error) {
	if uc == nil {
		return 0, errors.New("user challenge is nil")
	}
	var id int64
	row := cr.conn.QueryRow(
		ctx,
		`INSERT INTO user_challenges (user_id, challenge_id, progress, is_completed, completed_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		uc.UserID,
		uc.ChallengeID,
		uc.Progress,
		uc.IsCompleted,
		uc.CompletedAt,
	)
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// Unique violation
			case "23505":
				return 0, errorvalues.ErrAlreadyJoined
			// FK violation
			case "23503":
				return 0, errorvalues.ErrChallengeNotFound
			}
		}
		return 0, errors.New("joining challenge error: " + err.Error())
	}
	return id, nil
}

func (cr *ChallengesRepository) ListOpenForUser(ctx context.Context, uid uuid.UUID, now time.Time) ([]*ChallengeMembership, error) {
	rows, err := cr.conn.Query(
		ctx,
		`SELECT uc.id, uc.user_id, uc.challenge_id, uc.progress, uc.is_completed, uc.completed_at, uc.joined_at,
		c.name, c.description, c.type, c.target_type, c.target_value, c.target_category, c.reward_points, c.reward_badge_id, c.start_date, c.end_date, c.is_active, c.created_at
		FROM user_challenges uc JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1 AND uc.is_completed = FALSE AND c.start_date <= $2 AND c.end_date >= $2;`,
		uid,
		now,
	)
	if err != nil {
		return nil, errors.New("listing open memberships error: " + err.Error())
	}
	defer rows.Close()
	memberships := make([]*ChallengeMembership, 0)
	for rows.Next() {
		m := ChallengeMembership{}
		err = rows.Scan(&m.UserChallenge.ID, &m.UserChallenge.UserID, &m.UserChallenge.ChallengeID, &m.UserChallenge.Progress,
			&m.UserChallenge.IsCompleted, &m.UserChallenge.CompletedAt, &m.UserChallenge.JoinedAt,
			&m.Challenge.Name, &m.Challenge.Description, &m.Challenge.Type, &m.Challenge.TargetType, &m.Challenge.TargetValue,
			&m.Challenge.TargetCategory, &m.Challenge.RewardPoints, &m.Challenge.RewardBadgeID, &m.Challenge.StartDate,
			&m.Challenge.EndDate, &m.Challenge.IsActive, &m.Challenge.CreatedAt)
		if err != nil {
			return nil, errors.New("membership row parsing error: " + err.Error())
		}
		m.Challenge.ID = m.UserChallenge.ChallengeID
		memberships = append(memberships, &m)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected membership rows error: " + rows.Err().Error())
	}
	return memberships, nil
}

func (cr *ChallengesRepository) ListForUser(ctx context.Context, uid uuid.UUID) ([]*entity.UserChallenge, error) {
	rows, err := cr.conn.Query(
		ctx,
		`SELECT id, user_id, challenge_id, progress, is_completed, completed_at, joined_at FROM user_challenges WHERE user_id = $1;`,
		uid,
	)
	if err != nil {
		return nil, errors.New("listing user memberships error: " + err.Error())
	}
	defer rows.Close()
	ucs := make([]*entity.UserChallenge, 0)
	for rows.Next() {
		uc := entity.UserChallenge{}
		err = rows.Scan(&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.Progress, &uc.IsCompleted, &uc.CompletedAt, &uc.JoinedAt)
		if err != nil {
			return nil, errors.New("user membership row parsing error: " + err.Error())
		}
		ucs = append(ucs, &uc)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected user membership rows error: " + rows.Err().Error())
	}
	return ucs, nil
}

func (cr *ChallengesRepository) AddProgress(ctx context.Context, id int64, delta int) (int, error) {
	var progress int
	row := cr.conn.QueryRow(
		ctx,
		`UPDATE user_challenges SET progress = progress + $2 WHERE id = $1 RETURNING progress;`,
		id,
		delta,
	)
	if err := row.Scan(&progress); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errorvalues.ErrChallengeNotFound
		}
		return 0, errors.New("adding challenge progress error: " + err.Error())
	}
	return progress, nil
}

// Complete is the one-way completion transition. The WHERE guard makes it a
// test-and-set: of two racing callers exactly one sees completed = true here,
// so reward payout cannot double-fire.
func (cr *ChallengesRepository) Complete(ctx context.Context, id int64, at time.Time) (bool, error) {
	ct, err := cr.conn.Exec(
		ctx,
		`UPDATE user_challenges SET is_completed = TRUE, completed_at = $2 WHERE id = $1 AND is_completed = FALSE;`,
		id,
		at,
	)
	if err != nil {
		return false, errors.New("completing challenge error: " + err.Error())
	}
	return ct.RowsAffected() > 0, nil
}
