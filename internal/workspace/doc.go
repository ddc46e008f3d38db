// Package workspace resolves and manages the directories a build works in: the invocation
// root, the package tree and the source tree.
package workspace
