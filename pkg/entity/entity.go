package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Points       int       `json:"points"`
	Level        int       `json:"level"`
	FCMToken     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category is the closed set of activity categories.
type Category string

const (
	CategoryTransport   Category = "transport"
	CategoryEnergy      Category = "energy"
	CategoryWater       Category = "water"
	CategoryWaste       Category = "waste"
	CategoryGreen       Category = "green"
	CategoryConsumption Category = "consumption"
)

type Activity struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"desc"`
	Points      int       `json:"points"`
	Category    Category  `json:"category"`
	Icon        string    `json:"icon"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserActivity is one row of the append-only completion ledger. Derived
// counters (streaks, badge metrics, challenge progress) must stay consistent
// with this log.
type UserActivity struct {
	ID           int64     `json:"id"`
	UserID       uuid.UUID `json:"uid"`
	ActivityID   uuid.UUID `json:"activity_id"`
	PointsEarned int       `json:"points_earned"`
	CompletedAt  time.Time `json:"completed_at"`
}

type Streak struct {
	UserID           uuid.UUID  `json:"uid"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	StreakStartDate  *time.Time `json:"streak_start_date,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StreakLeader is a leaderboard projection row.
type StreakLeader struct {
	UserID        uuid.UUID `json:"uid"`
	Username      string    `json:"username"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
}

// BadgeType is the closed set of badge qualification rules.
type BadgeType string

const (
	BadgeTypeStreak     BadgeType = "streak"
	BadgeTypePoints     BadgeType = "points"
	BadgeTypeActivities BadgeType = "activities"
	BadgeTypeChallenge  BadgeType = "challenge"
	BadgeTypeSpecial    BadgeType = "special"
)

type Badge struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"desc"`
	Icon        string    `json:"icon"`
	Type        BadgeType `json:"type"`
	Requirement int       `json:"requirement"`
	Rarity      string    `json:"rarity"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserBadge struct {
	UserID   uuid.UUID `json:"uid"`
	BadgeID  uuid.UUID `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// ChallengeType is the closed set of recurring challenge kinds.
type ChallengeType string

const (
	ChallengeTypeWeekly  ChallengeType = "weekly"
	ChallengeTypeMonthly ChallengeType = "monthly"
)

// TargetType is the closed set of challenge progress rules.
type TargetType string

const (
	TargetTypePoints     TargetType = "points"
	TargetTypeActivities TargetType = "activities"
	TargetTypeCategory   TargetType = "category"
	TargetTypeStreak     TargetType = "streak"
)

type Challenge struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"desc"`
	Type           ChallengeType `json:"type"`
	TargetType     TargetType    `json:"target_type"`
	TargetValue    int           `json:"target_value"`
	TargetCategory *Category     `json:"target_category,omitempty"`
	RewardPoints   int           `json:"reward_points"`
	RewardBadgeID  *uuid.UUID    `json:"reward_badge_id,omitempty"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	IsActive       bool          `json:"is_active"`
	CreatedAt      time.Time     `json:"created_at"`
}

type UserChallenge struct {
	ID          int64      `json:"id"`
	UserID      uuid.UUID  `json:"uid"`
	ChallengeID uuid.UUID  `json:"challenge_id"`
	Progress    int        `json:"progress"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	JoinedAt    time.Time  `json:"joined_at"`
}
