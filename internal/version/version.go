package version

import "runtime/debug"

// Version information (set via ldflags in production builds)
var (
	Version   = ""
	BuildTime = ""
	GitCommit = ""
)

func init() {
	// If version wasn't set via ldflags, this is a dev build
	if Version == "" {
		Version, BuildTime, GitCommit = fromBuildInfo()
	}
}

// fromBuildInfo derives version info from the VCS stamp Go embeds in the binary.
func fromBuildInfo() (version, buildTime, commit string) {
	version = "dev"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, "", ""
	}
	return describe(info.Settings)
}

func describe(settings []debug.BuildSetting) (version, buildTime, commit string) {
	version = "dev"
	var modified bool
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if commit != "" {
		short := commit
		if len(short) > 7 {
			short = short[:7]
		}
		version = "dev-" + short
		if modified {
			version += "-dirty"
		}
	}
	return version, buildTime, commit
}
