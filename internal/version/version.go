package version

// Version contains the application version information. It is also the value
// of the ~sdkver rules token.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/mobilecore/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return "mobilecore " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
