// Package errors provides the classified error primitives shared by every build stage.
//
// A ClassifiedError carries a category (io, decode, network, vcs, missing_digest, ...),
// a severity and structured context. The CLI adapter maps categories to exit codes so a
// malformed invocation and a failed build are distinguishable by the caller.
//
// Example usage:
//
//	err := errors.VCSError("clone failed").
//		WithContext("url", repoURL).
//		WithCause(originalErr).
//		Build()
package errors
