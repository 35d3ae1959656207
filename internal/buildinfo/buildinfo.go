// Package buildinfo carries the version stamped in by -ldflags.
package buildinfo

import "go.uber.org/zap"

var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

const notAvailable = "N/A"

// Info is the build stamp with empty values replaced by "N/A".
type Info struct {
	Version string
	Date    string
	Commit  string
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// Current returns the stamped build information.
func Current() Info {
	return Info{
		Version: orNA(BuildVersion),
		Date:    orNA(BuildDate),
		Commit:  orNA(BuildCommit),
	}
}

// String is used by cobra's --version.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ", " + i.Date + ")"
}

// Log writes the build information for component at info level.
func Log(logger *zap.SugaredLogger, component string) {
	i := Current()
	logger.Infow("build info",
		"component", component,
		"version", i.Version,
		"date", i.Date,
		"commit", i.Commit,
	)
}
