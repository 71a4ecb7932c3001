package core

import "errors"

var (
	// ErrInvalidArgument is returned when a caller passes an out-of-range or
	// unknown value, such as negative damage or an unknown setting.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when an operation is not allowed in the
	// current phase, such as reconfiguring a tower mid-game.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyRunning is returned by Play while a game is in progress.
	ErrAlreadyRunning = errors.New("game already running")
	// ErrMissingConfiguration is returned when a tower, spawn or powerup
	// spawn has not been set.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrConfigurationCorrupt is returned when stored configuration cannot be
	// decoded. Nothing is applied when it is returned.
	ErrConfigurationCorrupt = errors.New("configuration corrupt")
	// ErrInvalidConfiguration is returned for tower configs with
	// non-positive attributes.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
