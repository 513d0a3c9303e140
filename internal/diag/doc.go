// Package diag defines the diagnostic model shared by the collector, the patch
// actions and the CLI.
//
// # Purpose
//
//   - Turn raw build-tool output lines into Diagnostic records.
//   - Classify each record into a closed set of categories.
//   - Offer a Bag that supports sorting, deduplication and grouping by file.
//
// # Scope
//
// Package diag does not run builds, touch files or render output. Process
// invocation lives in internal/build, rendering in internal/diagfmt, and patching
// in internal/patch and internal/driver.
//
// # Line grammar
//
// The Kotlin compiler, as driven by Gradle, prints one diagnostic per line:
//
//	e: file:///home/project/src/Foo.kt:12:5 Unresolved reference: Bar
//
// The first letter is the severity (e, w, i). Everything else (task headers,
// continuation lines, source excerpts) does not match and is skipped silently.
// The URI scheme strips one path separator; PathStyle decides how to rebuild the
// filesystem path, since that depends on the machine that ran the build.
//
// # Classification
//
// Classify checks, in order, for "Unresolved reference", "type mismatch" and
// "Overload resolution ambiguity" and falls back to Other. Only "type mismatch"
// is matched regardless of case, as kotlinc spells it both ways.
// The first match wins, so a message mentioning both an unresolved reference and
// a type mismatch is an UnresolvedReference.
package diag
