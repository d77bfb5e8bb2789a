package catalog

import "errors"

var (
	// ErrProfileNotValid is returned when a review is written by a subject without a profile.
	ErrProfileNotValid = errors.New("profile does not exist or name is missing")
	// ErrProfileAlreadyExists is returned when a subject creates a second profile.
	ErrProfileAlreadyExists = errors.New("profile already exists")
	// ErrDisplayNameDuplicate is returned when a profile update takes a display name already in use.
	ErrDisplayNameDuplicate = errors.New("display name already in use")
	// ErrAlreadyReviewed is returned when a subject reviews the same title twice.
	ErrAlreadyReviewed = errors.New("title already reviewed")
	// ErrWatchlistNameTaken is returned when a subject already owns a watchlist with the same title.
	ErrWatchlistNameTaken = errors.New("watchlist already exists with name")
	// ErrInvalidInput is returned when a request body misses a required field.
	ErrInvalidInput = errors.New("invalid input")
)
