package bracket

import "errors"

var (
	ErrFormatConstraint   = errors.New("format constraint violated")
	ErrTiedScore          = errors.New("scores are tied")
	ErrInvalidWinner      = errors.New("winner is not part of this match")
	ErrAlreadyCompleted   = errors.New("match already completed")
	ErrDependencyConflict = errors.New("a dependent match has already been played")
	ErrPairingExhausted   = errors.New("no pairing without rematches exists")
	ErrInvalidScore       = errors.New("invalid score")
	ErrMatchNotReady      = errors.New("match is not ready")
	ErrInvalidSlot        = errors.New("team slot must be 1 or 2")
	ErrResetNotAllowed    = errors.New("match cannot be reset")
	ErrInvalidDisplayMode = errors.New("invalid display mode")
	ErrInvalidDuration    = errors.New("timer duration must be positive")

	// ErrCycleDetected means the generator produced a broken graph. Never recoverable.
	ErrCycleDetected = errors.New("bracket graph contains a cycle")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrTeamNotFound       = errors.New("team not found")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrFormatConstraint, "FormatConstraintError"},
	{ErrTiedScore, "TiedScoreError"},
	{ErrInvalidWinner, "InvalidWinnerError"},
	{ErrAlreadyCompleted, "AlreadyCompletedError"},
	{ErrDependencyConflict, "DependencyConflictError"},
	{ErrPairingExhausted, "PairingExhaustedError"},
	{ErrInvalidScore, "InvalidScoreError"},
	{ErrMatchNotReady, "MatchNotReadyError"},
	{ErrInvalidSlot, "InvalidSlotError"},
	{ErrResetNotAllowed, "ResetNotAllowedError"},
	{ErrInvalidDisplayMode, "InvalidDisplayModeError"},
	{ErrInvalidDuration, "InvalidDurationError"},
	{ErrCycleDetected, "CycleDetectedError"},
	{ErrTournamentNotFound, "TournamentNotFoundError"},
	{ErrMatchNotFound, "MatchNotFoundError"},
	{ErrTeamNotFound, "TeamNotFoundError"},
}

// ErrorKind returns the stable name reported to controllers, or "" for errors
// that do not belong to the engine.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}
