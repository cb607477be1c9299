package version

// Version is overridden at build time with -ldflags "-X macman/internal/version.Version=...".
var Version = "dev"
