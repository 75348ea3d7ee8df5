// Package diag defines the diagnostic model shared by the build runner and
// the diff engine.
//
// # Data model
//
// Diagnostic is one compiler message: severity, numeric Code, full Text and,
// when it points into a file, the repository-relative File with Line and
// Column. FileURL and ProjectURL are blob links into the hosted repository;
// they are what identifies a diagnostic in reports, so the runner fills them
// before handing results on.
//
// ProjectErrors groups the diagnostics of one entry-point project and marks
// builds that failed without producing any (HasBuildFailure). RepoErrors is
// the whole repository for one compiler version; HasConfigFailure means the
// project graph itself could not be built.
//
// # Collecting
//
// Parser consumes compiler output line by line (the output of --pretty false)
// and emits diagnostics as soon as their message chain is complete. Bag keeps
// the distinct ones in arrival order and counts those refused past its limit.
//
// Nothing in this package performs IO beyond reading a supplied io.Reader.
package diag
