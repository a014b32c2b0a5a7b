package catalog

import "fmt"

// Origin names the byte source a build read from.
type Origin string

const (
	OriginURL   Origin = "url"
	OriginAsset Origin = "asset"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageParse Stage = "parse"
)

// BuildError describes a failure that a build recovered from. Builds never
// return it; it is handed to the ErrorHook.
type BuildError struct {
	Origin Origin
	Stage  Stage
	Ref    string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("catalog %s %s %s: %v", e.Origin, e.Stage, e.Ref, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ErrorHook receives every recovered build failure.
type ErrorHook func(*BuildError)
