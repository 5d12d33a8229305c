// Package tag exposes build-time flags checked by other packages to enable
// extra runtime invariant checking (debug builds) or to skip tests that
// don't play well with the race detector.
package tag

// Debug is true when the binary was built with `-tags debug`. Debug builds
// run extra invariant checks that are too expensive for production.
var Debug = debug

// Race is true when the binary was built with `-race`.
const Race = race
