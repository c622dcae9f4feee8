package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/ecotrack/pkg/entity"
)

type UsersRepositoryI interface {
	// Creates new user in database
	Create(ctx context.Context, user *entity.User) error
	// Looks up user by name. Can be used for login
	FindByName(ctx context.Context, name string) (*entity.User, error)
	// Looks up user by uid. Can be used for authorization middleware
	FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error)
	// Atomically credits delta points to user and recomputes level in the same
	// statement. Returns resulting points and level. The only write path for points
	AddPoints(ctx context.Context, uid uuid.UUID, delta int) (points, level int, err error)
	// Deletes user
	Delete(ctx context.Context, uid uuid.UUID) error
}

type ActivitiesRepositoryI interface {
	// Searches active catalog activity with given id
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Activity, error)
	// Lists active catalog entries ordered by category and name
	ListActive(ctx context.Context) ([]*entity.Activity, error)
}

type LedgerRepositoryI interface {
	// Appends a completion record. The ledger is append-only
	Append(ctx context.Context, rec *entity.UserActivity) error
	// Returns total count of user's completions
	CountByUser(ctx context.Context, uid uuid.UUID) (int, error)
	// Sums points earned by user at/after since
	SumPointsSince(ctx context.Context, uid uuid.UUID, since time.Time) (int, error)
	// Counts user's completions at/after since, optionally filtered
	// by the completed activity's category
	CountSince(ctx context.Context, uid uuid.UUID, since time.Time, category *entity.Category) (int, error)
	// Returns ids of activities the user completed at/after since
	CompletedActivityIDsSince(ctx context.Context, uid uuid.UUID, since time.Time) ([]uuid.UUID, error)
}

type StreaksRepositoryI interface {
	// Returns user's streak record. ErrStreakNotFound when none exists yet
	GetByUser(ctx context.Context, uid uuid.UUID) (*entity.Streak, error)
	// Inserts or fully replaces user's streak record
	Upsert(ctx context.Context, streak *entity.Streak) error
	// Force-resets streak to zero keeping longest_streak. Reports whether
	// a row actually changed (guards against concurrent advance)
	Reset(ctx context.Context, uid uuid.UUID) (bool, error)
	// Lists running streaks whose last activity day is strictly before cutoff
	ListExpired(ctx context.Context, cutoff time.Time) ([]*entity.Streak, error)
	// Lists running streaks whose last activity day falls in [from, to)
	ListLastActiveBetween(ctx context.Context, from, to time.Time) ([]*entity.Streak, error)
	// Top running streaks with usernames for the leaderboard
	TopStreaks(ctx context.Context, limit int) ([]*entity.StreakLeader, error)
}

type BadgesRepositoryI interface {
	// Lists active badge catalog
	ListActive(ctx context.Context) ([]*entity.Badge, error)
	// Returns set of badge ids already earned by user
	ListEarnedIDs(ctx context.Context, uid uuid.UUID) ([]uuid.UUID, error)
	// Idempotently awards badge to user. Reports false when the badge
	// was already earned (duplicate insert degrades to no-op)
	Award(ctx context.Context, uid, badgeID uuid.UUID) (bool, error)
}

// ChallengeMembership pairs a progress row with its catalog challenge.
type ChallengeMembership struct {
	UserChallenge entity.UserChallenge
	Challenge     entity.Challenge
}

type ChallengesRepositoryI interface {
	// Searches challenge with given id
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error)
	// Lists active challenges whose window contains now
	ListActiveAt(ctx context.Context, now time.Time) ([]*entity.Challenge, error)
	// Creates catalog challenge
	Create(ctx context.Context, ch *entity.Challenge) (uuid.UUID, error)
	// Reports whether a challenge of given type starts inside [from, to]
	ExistsInWindow(ctx context.Context, ctype entity.ChallengeType, from, to time.Time) (bool, error)
	// Creates the user's membership row. ErrAlreadyJoined on duplicate
	Join(ctx context.Context, uc *entity.UserChallenge) (int64, error)
	// Lists user's not-yet-completed memberships whose challenge window contains now
	ListOpenForUser(ctx context.Context, uid uuid.UUID, now time.Time) ([]*ChallengeMembership, error)
	// Lists all memberships of the user
	ListForUser(ctx context.Context, uid uuid.UUID) ([]*entity.UserChallenge, error)
	// Atomically adds delta to progress, returns resulting progress
	AddProgress(ctx context.Context, id int64, delta int) (int, error)
	// Marks membership completed if it is not already. Reports whether this
	// call won the transition (test-and-set, guards reward payout)
	Complete(ctx context.Context, id int64, at time.Time) (bool, error)
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
