//go:build !mtrackdebug

package connection

const debugAssertions = false
