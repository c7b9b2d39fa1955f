// Package identity resolves the acting user for @me aliases, default
// reporters, and event attribution.
package identity

import (
	"os"
	"os/exec"
	"os/user"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var log = logger.New("identity:resolve")

// MeAlias is the token that expands to the resolved current user.
const MeAlias = "@me"

// ResolveCurrentUser determines who is acting: the configured
// default_reporter when set, else the git user from the enclosing
// repository, else the OS username, else empty.
func ResolveCurrentUser(ws workspace.Workspace) string {
	if resolved, err := config.LoadAndMerge(ws); err == nil && resolved.DefaultReporter != "" {
		return resolved.DefaultReporter
	}

	if git := gitUser(); git != "" {
		return git
	}

	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return ""
}

// ResolveMeAlias substitutes @me (any case) with the resolved current user;
// any other input passes through unchanged.
func ResolveMeAlias(input string, ws workspace.Workspace) string {
	if !strings.EqualFold(input, MeAlias) {
		return input
	}
	return ResolveCurrentUser(ws)
}

// gitUser shells out to git config; email preferred over name.
func gitUser() string {
	for _, key := range []string{"user.email", "user.name"} {
		out, err := exec.Command("git", "config", key).Output()
		if err != nil {
			log.Printf("git config %s: %v", key, err)
			continue
		}
		if v := strings.TrimSpace(string(out)); v != "" {
			return v
		}
	}
	return ""
}
