// Package version exposes build identity for the traction binary.
package version

import "runtime/debug"

const unknown = "unknown"

// Version is the semantic version of the binary, injected at link time.
var Version = "dev"

// Commit is the VCS revision the binary was built from.
var Commit = unknown

// Date is the VCS commit timestamp the binary was built from.
var Date = unknown

// InitBinaryVersion fills Commit and Date from embedded build metadata when
// they were not injected at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}
