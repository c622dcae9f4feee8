package errorvalues

import "errors"

var (
	ErrUserExists       = errors.New("such user already exists")
	ErrUserNotFound     = errors.New("user doesn't exists")
	ErrWrongCredentials = errors.New("wrong name or password")
	ErrInvalidToken     = errors.New("invalid token")

	ErrActivityNotFound  = errors.New("activity doesn't exist or inactive")
	ErrStreakNotFound    = errors.New("streak record doesn't exist")
	ErrChallengeNotFound = errors.New("challenge doesn't exist")
	ErrChallengeEnded    = errors.New("challenge already ended")
	ErrAlreadyJoined     = errors.New("user already joined this challenge")
)
