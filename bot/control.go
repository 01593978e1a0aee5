package bot

// Control is the external build-control capability. It is wired into
// the bot only when allowForce is configured; command handlers check
// the capability flags again before invoking it.
type Control interface {
	// ForceBuild requests a build of the named builder
	ForceBuild(builder, reason, branch, revision string) error
	// StopBuild stops the running build of the named builder
	StopBuild(builder, reason string) error
	// Shutdown asks the build master to shut down cleanly
	Shutdown() error
}
