package version

// Version is the current release, overridable via ldflags.
var Version = "1.4.2"
