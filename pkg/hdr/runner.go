package hdr

import(
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// A Runner executes pipeline scripts and does the bookkeeping around
// them: the components archive exists before a script needs it, and a
// script that has run loses its execute bits so it can't fire twice.
type Runner struct {
	Config Config
}

func NewRunner(c Config) Runner {
	return Runner{Config: c}
}

// EnsureComponentsDir idempotently creates the archive subdirectory
// that scripts move their merged-in originals into.
func (r Runner)EnsureComponentsDir(dir string) error {
	target := filepath.Join(dir, r.Config.ComponentsDir)
	if err := os.Mkdir(target, 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("mkdir '%s': %v", target, err)
	}
	return nil
}

// PendingScripts finds the executable pipeline scripts in DIR, in
// sorted order. Scripts without execute permission have already run
// (or were never meant to) and are left alone.
func (r Runner)PendingScripts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.SH"))
	if err != nil {
		return nil, fmt.Errorf("glob '%s': %v", dir, err)
	}

	scripts := []string{}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			scripts = append(scripts, m)
		}
	}
	sort.Strings(scripts)
	return scripts, nil
}

// RunPendingScripts executes every pending script in DIR, in sorted
// order. A script's own failure doesn't stop the ones after it.
func (r Runner)RunPendingScripts(dir string) error {
	if err := r.EnsureComponentsDir(dir); err != nil {
		return err
	}

	scripts, err := r.PendingScripts(dir)
	if err != nil {
		return err
	}

	log.Infof("running %d executable script(s) in '%s'", len(scripts), dir)
	for _, script := range scripts {
		if err := r.RunScript(script); err != nil {
			log.Errorf("script '%s': %v", script, err)
		}
	}
	return nil
}

// RunScript executes one pipeline script, blocking until it exits,
// then revokes its execute bits whatever happened. A non-zero exit is
// reported rather than trusted silently.
func (r Runner)RunScript(script string) error {
	abs, err := filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("resolve '%s': %v", script, err)
	}

	log.Infof("running script: %s", abs)
	cmd := exec.Command(abs)
	cmd.Dir = filepath.Dir(abs)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()

	if info, err := os.Stat(abs); err != nil {
		return fmt.Errorf("stat '%s': %v", abs, err)
	} else if err := os.Chmod(abs, info.Mode()&^0o111); err != nil {
		return fmt.Errorf("chmod -x '%s': %v", abs, err)
	}

	if runErr != nil {
		return fmt.Errorf("run '%s': %v", abs, runErr)
	}
	return nil
}

// Watch polls DIR for newly appeared executable scripts and runs them
// as they show up, until the context is cancelled. A plain polling
// loop, not an inotify watch: scripts appear rarely and the interval
// is generous.
func (r Runner)Watch(ctx context.Context, dir string) error {
	for {
		log.Infof("looking for executable shell scripts at %s ...", time.Now().Format(time.RFC3339))

		scripts, err := r.PendingScripts(dir)
		if err != nil {
			return err
		}
		if len(scripts) > 0 {
			log.Infof("found %d script(s); executing ...", len(scripts))
			if err := r.RunPendingScripts(dir); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Config.PollInterval):
		}
	}
}
