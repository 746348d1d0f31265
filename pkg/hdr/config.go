package hdr

import(
	"fmt"
	"os"
	"os/exec"
	"time"

	"gopkg.in/yaml.v2"
)

/* Example config file ...

shifts:
  min: -5
  max: 5
clippingthreshold: 144
jpegquality: 98
darkframepath: /home/patrick/Photos/t7i_darkframe_for_dcraw.pgm
darknesslevel: "2047.901764"
pollinterval: 30s
tools:
  dcraw: /usr/bin/dcraw

*/

// ShiftRange is the inclusive range of EV adjustments to attempt when
// rendering a raw file. [-5,+5] is about the most that can plausibly
// be pulled out of a single 12- or 14-bit raw file.
type ShiftRange struct {
	Min int
	Max int
}

// Tools holds the locations of the external programs the pipeline
// invokes. Empty entries are resolved from $PATH by DiscoverTools.
type Tools struct {
	Dcraw           string
	Exiftool        string
	AlignImageStack string `yaml:"alignimagestack"`
	Enfuse          string
	Convert         string
}

type Config struct {
	Shifts            ShiftRange

	// ClippingThreshold is the number of histogram buckets counted at
	// each edge when testing for clipping: a rendering whose smoothed
	// histogram has at least half its mass within that many buckets of
	// an edge is considered clipped there. 144 suits my 14-bit raws;
	// 16 is a better fit for narrower sensors.
	ClippingThreshold int

	// Base exposure values used when the source image carries no
	// readable ISO / measured-EV tags.
	FallbackISO       int
	FallbackEV        int

	JpegQuality       int

	// If DarkframePath exists it is subtracted during decode; otherwise
	// the flat DarknessLevel correction is applied. The two are
	// mutually exclusive. AvoidDarknessAdjustment suppresses both
	// (useful for scanned negatives).
	DarkframePath           string
	DarknessLevel           string
	AvoidDarknessAdjustment bool

	ComponentsDir     string  // where merged-in originals get archived
	OldScriptsDir     string  // where superseded scripts get archived

	// PollInterval is how long the watch loop sleeps between scans. In
	// the config file it is written as a human-readable duration
	// ("30s", "2m"); FinalizeConfig parses it.
	PollInterval     time.Duration `yaml:"-"`
	PollIntervalText string        `yaml:"pollinterval,omitempty"`

	Tools             Tools
}

func NewConfig() Config {
	c := Config{}
	c.FinalizeConfig()
	return c
}

func LoadConfig(filename string) (Config, error) {
	c := Config{}

	if contents,err := os.ReadFile(filename); err != nil {
		return c, fmt.Errorf("config read '%s': %v", filename, err)
	} else if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("config parse '%s': %v", filename, err)
	}

	return c, c.FinalizeConfig()
}

// FinalizeConfig fills in defaults and sanity checks the result.
func (c *Config)FinalizeConfig() error {
	if c.Shifts.Min == 0 && c.Shifts.Max == 0 {
		c.Shifts = ShiftRange{Min: -5, Max: 5}
	}
	if c.ClippingThreshold == 0 { c.ClippingThreshold = 144 }
	if c.FallbackISO == 0 { c.FallbackISO = 100 }
	if c.FallbackEV == 0 { c.FallbackEV = 8 }
	if c.JpegQuality == 0 { c.JpegQuality = 98 }
	if c.DarknessLevel == "" { c.DarknessLevel = "2047.901764" }
	if c.ComponentsDir == "" { c.ComponentsDir = "HDR_components" }
	if c.OldScriptsDir == "" { c.OldScriptsDir = "old_scripts" }
	if c.PollIntervalText != "" {
		interval, err := time.ParseDuration(c.PollIntervalText)
		if err != nil {
			return fmt.Errorf("poll interval '%s': %v", c.PollIntervalText, err)
		}
		c.PollInterval = interval
	}
	if c.PollInterval == 0 { c.PollInterval = 30 * time.Second }

	if c.Tools.Dcraw == "" { c.Tools.Dcraw = "dcraw" }
	if c.Tools.Exiftool == "" { c.Tools.Exiftool = "exiftool" }
	if c.Tools.AlignImageStack == "" { c.Tools.AlignImageStack = "align_image_stack" }
	if c.Tools.Enfuse == "" { c.Tools.Enfuse = "enfuse" }
	if c.Tools.Convert == "" { c.Tools.Convert = "convert" }

	if c.Shifts.Min > c.Shifts.Max {
		return fmt.Errorf("shift range [%d,%d] is backwards", c.Shifts.Min, c.Shifts.Max)
	}
	if c.ClippingThreshold < 1 || c.ClippingThreshold > 255 {
		return fmt.Errorf("clipping threshold %d outside [1,255]", c.ClippingThreshold)
	}

	return nil
}

// DiscoverTools resolves each external program against $PATH once, at
// startup, so that a missing binary is a fatal configuration error
// rather than a mid-pipeline surprise.
func (c *Config)DiscoverTools() error {
	for _, tool := range []*string{
		&c.Tools.Dcraw,
		&c.Tools.Exiftool,
		&c.Tools.AlignImageStack,
		&c.Tools.Enfuse,
		&c.Tools.Convert,
	} {
		loc, err := exec.LookPath(*tool)
		if err != nil {
			return fmt.Errorf("external tool '%s' not found: %v", *tool, err)
		}
		*tool = loc
	}
	return nil
}

func (c Config)AsYaml() string {
	c.PollIntervalText = c.PollInterval.String()
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("# can't marshal config: %v\n", err)
	}
	return string(b)
}
