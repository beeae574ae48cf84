package lfpanels

import (
	"errors"

	"github.com/setanarut/lfpanels/utils"
)

// Every sentinel is prefixed with "lfpanels:". Callers match them with
// errors.Is; solver code wraps them with fmt.Errorf("...: %w", ErrX).
var (
	// ErrSettings is returned when Settings fail validation.
	ErrSettings = errors.New("lfpanels: invalid settings")

	// ErrShapeMismatch signals that an incidence matrix disagrees with the
	// resolution or ray count it is declared against.
	ErrShapeMismatch = errors.New("lfpanels: shape mismatch")

	// ErrViewpoints signals a mapping whose per-viewpoint lists do not match
	// the bundle's viewpoint count.
	ErrViewpoints = errors.New("lfpanels: viewpoint count mismatch")

	// ErrProblem is returned for an unknown Kind or a Problem without the
	// payload its Kind needs.
	ErrProblem = errors.New("lfpanels: malformed problem")

	// ErrRange means a factor entry left [0,1]. It is the same value as
	// utils.ErrRange so either can be matched.
	ErrRange = utils.ErrRange
)
