// Package git syncs version-controlled sources into the source tree.
//
// Sync clones a repository on first use and fetches into the existing working copy on
// later runs. The choice is made from the local state before any network traffic.
// Transfer progress is reported as immutable Progress snapshots to a caller-supplied
// ProgressSink, invoked inline with the transfer.
package git
