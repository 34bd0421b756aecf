package utils

// Build metadata, set via -ldflags at release time.
var (
	Tag        string
	GitHash    string
	BuildStamp string
)
