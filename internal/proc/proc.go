// Package proc applies process-group handling to spawned children so the
// host can stop a shell or job together with anything it started.
package proc

import (
	"os"
	"os/exec"
	"strings"
	"time"
)

// WaitDelay bounds how long Wait blocks on pipes after cancellation.
const WaitDelay = 2 * time.Second

// Configure places cmd in its own process group and makes context
// cancellation terminate the whole group.
func Configure(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	configureSysProcAttr(cmd)
	cmd.Cancel = func() error {
		return Terminate(cmd)
	}
	cmd.WaitDelay = WaitDelay
}

// Terminate asks the process group to exit.
func Terminate(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return os.ErrProcessDone
	}
	return terminate(cmd.Process)
}

// Kill forcefully stops the process group.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return os.ErrProcessDone
	}
	return kill(cmd.Process)
}

// Env returns the current environment with overlay applied on top. Keys in
// overlay replace existing entries instead of duplicating them.
func Env(base []string, overlay map[string]string) []string {
	if base == nil {
		base = os.Environ()
	}
	env := append([]string(nil), base...)
	for _, key := range sortedKeys(overlay) {
		env = append(filterEnv(env, key), key+"="+overlay[key])
	}
	return env
}

func filterEnv(env []string, key string) []string {
	out := env[:0]
	prefix := key + "="
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			continue
		}
		out = append(out, entry)
	}
	return out
}
