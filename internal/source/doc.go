// Package source populates the source tree from a descriptor's source list.
//
// Each specifier is dispatched by its form:
//
//	git+<url>        cloned or fetched into the source tree, no digest check
//	<scheme>://...   downloaded next to the descriptor, verified, then extracted
//	<file>           a pre-staged local file, verified, then extracted or copied
//
// Entries are resolved strictly in order and the first failure aborts resolution.
package source
