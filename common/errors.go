package common

import "errors"

var (
	ErrDiskFull = errors.New("disk full")

	ErrClosed   = errors.New("storage engine closed")
	ErrKeyEmpty = errors.New("key cannot be empty")

	// ErrCorruptMetadata is returned when a manifest page fails its
	// checksum or decodes to an out-of-range K/N/level configuration.
	ErrCorruptMetadata = errors.New("smerge: corrupt manifest page")

	// ErrRunCreateFailed is returned when the catalog cannot materialize
	// a new run relation (disk full, permission, name collision).
	ErrRunCreateFailed = errors.New("smerge: run creation failed")

	// ErrRunNotFound is returned when a manifest slot names a run that
	// the catalog cannot open.
	ErrRunNotFound = errors.New("smerge: run not found")

	// ErrUniqueViolation is returned by Insert when a unique index
	// already holds an entry for the key, in curr or any other live run.
	ErrUniqueViolation = errors.New("smerge: duplicate key in unique index")

	// ErrMergeAborted is returned when a merge cannot complete and the
	// manifest is left unchanged (e.g. an input run failed to open).
	ErrMergeAborted = errors.New("smerge: merge aborted")

	// ErrOversizeTuple is returned when a key (plus the fixed TID
	// payload) would not fit three to a page in any run's B-tree.
	ErrOversizeTuple = errors.New("smerge: tuple too large for a page")

	// ErrTooManyLevels / ErrTooManyRuns guard the manifest's fixed-size
	// level/run arrays (MaxN, MaxK) against a misconfigured K or N.
	ErrTooManyLevels = errors.New("smerge: level count exceeds MaxN")
	ErrTooManyRuns   = errors.New("smerge: run count exceeds MaxK")
)
