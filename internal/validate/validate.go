// Package validate implements the pre-run column checks and the
// post-transform integrity checks.
//
// Pre-validation failures are fatal: the run aborts before any
// transformation. Post-validation violations are recoverable per record
// (the offender is excluded from the load) until the configured
// threshold is exceeded, which escalates to a fatal run failure.
package validate

import "github.com/rotisserie/eris"

// ErrColumnMismatch marks fatal pre-validation failures.
var ErrColumnMismatch = eris.New("column mismatch")

// ErrThresholdExceeded marks a run with more post-validation violations
// than the configured maximum.
var ErrThresholdExceeded = eris.New("referential violations exceed threshold")
