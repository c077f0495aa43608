// Package stream opens and creates codec byte streams with transparent
// gzip handling.
//
// FreeSurfer tooling compresses several of its formats by convention
// rather than by content: an MGH volume saved as .mgz is byte-for-byte an
// MGH file behind a gzip layer, and any surface or curv file may gain a
// .gz suffix. Codecs therefore never look at compression themselves; they
// read and write plain streams obtained here.
//
// # Suffix Policy
//
// Whether a path is wrapped in gzip is decided by a [Policy], a list of
// case-insensitive filename suffixes. [DefaultPolicy] covers the
// conventional .gz and .mgz endings; callers with unusual naming schemes
// build their own Policy and use its Open and Create methods.
//
// # Lifecycle
//
// [Open] and [Create] return wrappers that own every layer they stacked:
// closing the returned handle flushes and closes the gzip layer before the
// underlying file. Each handle belongs to a single decode or encode call.
package stream
