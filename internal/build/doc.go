// Package build provides the package build pipeline.
//
// A build is a fixed sequence of stages, each gated on the success of the previous one:
//
//	set_env → create_dirs → handle_source → build → package → set_build_date →
//	restore_working_directory → write_metadata → write_manifest → archive
//
// The first failing stage ends the build; nothing is retried. Directories and the child
// environment are carried in a BuildContext value, so the process working directory and
// environment are never mutated. Partial artifacts are left in place; removing them is the
// job of Clean.
package build
