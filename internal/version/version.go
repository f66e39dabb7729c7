// Package version carries build identity, filled in via ldflags.
package version

var (
	AppName        = "voxline"
	AppDescription = "Delivers pre-recorded character voice lines into chat sessions."

	// Set at build time:
	//   -X .../internal/version.BuildDate=... -X .../internal/version.GoVersion=...
	BuildDate string
	GoVersion string
)
