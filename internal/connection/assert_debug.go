//go:build mtrackdebug

package connection

// Built with -tags mtrackdebug: contract violations abort.
const debugAssertions = true
