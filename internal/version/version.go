// ABOUTME: Version and product identification for mtrack-remote
// ABOUTME: Version is overridden at build time with -ldflags "-X"
package version

// Version is the release version
var Version = "0.1.0"

const (
	// Product is the program name shown in logs and the TUI
	Product = "mtrack-remote"

	// Manufacturer identifies the project
	Manufacturer = "mtrack-remote project"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
