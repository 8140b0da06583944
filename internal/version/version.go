package version

// Version is the current version of the huddle CLI.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/huddlemesh/huddle/internal/version.Version=v1.0.0'"
var Version = "dev"
