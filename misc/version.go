// Package misc keeps build stamped program identity.
package misc

// Set by the linker: -ldflags "-X csscc/misc.version=... -X csscc/misc.gitHash=...".
var (
	appName = "csscc"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
