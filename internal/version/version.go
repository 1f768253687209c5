package version

// Version is the orderbot release.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-orderbot/internal/version.Version=1.2.3"
// The default value "dev" indicates a development build.
var Version = "dev"

// GetVersion returns the current version of the binary.
func GetVersion() string {
	return Version
}
