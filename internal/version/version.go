// Package version exposes the build version, overridable at link time.
package version

// version is set via -ldflags "-X .../internal/version.version=v1.2.3".
var version = "dev"

// String returns the build version.
func String() string {
	return version
}
