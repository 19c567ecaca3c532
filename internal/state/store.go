// Package state records build history in a local SQLite database, so the
// CLI can show what was compiled, when and how it went.
package state

import "time"

// BuildStatus is the outcome of a recorded build.
type BuildStatus string

const (
	BuildStatusOK     BuildStatus = "ok"
	BuildStatusFailed BuildStatus = "failed"
)

// Build is one recorded compilation.
type Build struct {
	ID         string
	SourceFile string

	// SourceHash is the hex sha256 of the source text that was compiled.
	SourceHash string

	// OutputPath is where the image was written, empty for checks and
	// failed builds.
	OutputPath string

	Status BuildStatus

	// Error holds the compile error for failed builds.
	Error string

	// image statistics, zero for failed builds
	BinarySize int
	Functions  int
	DataBytes  int

	RegCount  int
	Duration  time.Duration
	CreatedAt time.Time
}

// Store persists build history.
type Store interface {
	RecordBuild(b *Build) error
	GetBuild(id string) (*Build, error)
	ListBuilds(sourceFile string, limit int) ([]*Build, error)
	Close() error
}
