package kmol

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/kmol-editor/kmol.Version=...".
var Version = "0.1.0-dev"
