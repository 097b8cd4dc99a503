// Package target keeps track of the named worker targets tasks run against.
// The Registry resolves a target name to a live endpoint and can bring a
// target's service up on demand; definitions are loaded from YAML or
// markdown-with-frontmatter files and optionally hot-reloaded.
package target
