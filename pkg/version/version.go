// Package version identifies the library build.
package version

import "fmt"

// Version components. Major changes when the wire format or public API
// breaks, Minor when features are added, Patch for fixes only.
const (
	Major = 0
	Minor = 1
	Patch = 0

	// Label marks pre-release builds ("rc1", "beta2"); empty on releases.
	Label = ""
)

// String returns the semantic version, e.g. "v0.1.0" or "v0.2.0-rc1".
func String() string {
	if Label == "" {
		return fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	}
	return fmt.Sprintf("v%d.%d.%d-%s", Major, Minor, Patch, Label)
}

// Full prefixes the version with the project name for banners and logs.
func Full() string {
	return "PQNoise-Go " + String()
}
