package repository

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/limbo/ecotrack/pkg/cleanup"
	"github.com/limbo/ecotrack/pkg/entity"
)

type BadgesRepository struct {
	conn PgConnection
}

func NewBadgesRepo(cfg DBConfig) *BadgesRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for badgesRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for badgesRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &BadgesRepository{
		conn: pool,
	}
}

func NewBadgesRepoWithConn(conn PgConnection) *BadgesRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for badgesRepo: " + err.Error())
	}
	return &BadgesRepository{
		conn: conn,
	}
}

func (br *BadgesRepository) ListActive(ctx context.Context) ([]*entity.Badge, error) {
	rows, err := br.conn.Query(ctx, `SELECT id, name, description, icon, type, requirement, rarity, is_active, created_at
		FROM badges WHERE is_active = TRUE;`)
	if err != nil {
		return nil, errors.New("listing active badges error: " + err.Error())
	}
	defer rows.Close()
	badges := make([]*entity.Badge, 0)
	for rows.Next() {
		b := entity.Badge{}
		err = rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.Type, &b.Requirement, &b.Rarity, &b.IsActive, &b.CreatedAt)
		if err != nil {
			return nil, errors.New("badge row parsing error: " + err.Error())
		}
		badges = append(badges, &b)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected badge rows error: " + rows.Err().Error())
	}
	return badges, nil
}

func (br *BadgesRepository) ListEarnedIDs(ctx context.Context, uid uuid.UUID) ([]uuid.UUID, error) {
	rows, err := br.conn.Query(ctx, `SELECT badge_id FROM user_badges WHERE user_id = $1;`, uid)
	if err != nil {
		return nil, errors.New("listing earned badge ids error: " + err.Error())
	}
	defer rows.Close()
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, errors.New("earned badge id parsing error: " + err.Error())
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected earned badge rows error: " + rows.Err().Error())
	}
	return ids, nil
}

// Award inserts the earned-badge row. A concurrent duplicate insert loses the
// ON CONFLICT race and reports awarded = false instead of an error.
func (br *BadgesRepository) Award(ctx context.Context, uid, badgeID uuid.UUID) (bool, error) {
	ct, err := br.conn.Exec(
		ctx,
		`INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2) ON CONFLICT (user_id, badge_id) DO NOTHING;`,
		uid,
		badgeID,
	)
	if err != nil {
		return false, errors.New("awarding badge error: " + err.Error())
	}
	return ct.RowsAffected() > 0, nil
}
