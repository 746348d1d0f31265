// Command run-scripts executes the pipeline scripts waiting in a
// directory, stripping their execute bits afterward so nothing runs
// twice. With -watch it keeps polling for new scripts until
// interrupted.
package main

import(
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/patrick-brian-mooney/photo-processing/pkg/hdr"
)

var(
	fConfigFile string
	fDir        string
	fWatch      bool
	fInterval   time.Duration
)

func init() {
	flag.StringVar(&fConfigFile, "config", "", "YAML config file")
	flag.StringVar(&fDir, "dir", ".", "directory to run scripts in")
	flag.BoolVar(&fWatch, "watch", false, "keep polling for newly appeared scripts")
	flag.DurationVar(&fInterval, "interval", 0, "poll interval for -watch (0 = config default)")
	flag.Parse()

	log.SetOutput(os.Stdout)
}

func main() {
	c := hdr.NewConfig()
	if fConfigFile != "" {
		loaded, err := hdr.LoadConfig(fConfigFile)
		if err != nil {
			log.Fatal(err)
		}
		c = loaded
	}
	if fInterval > 0 { c.PollInterval = fInterval }

	runner := hdr.NewRunner(c)

	if err := runner.RunPendingScripts(fDir); err != nil {
		log.Fatal(err)
	}

	if fWatch {
		log.Info("watching for new scripts; hit ctrl-C when finished")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runner.Watch(ctx, fDir); err != nil && err != context.Canceled {
			log.Fatal(err)
		}
	}
}
