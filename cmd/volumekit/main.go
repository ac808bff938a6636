package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"volumekit/internal/logging"
	"volumekit/pkg/config"
)

// command is one volumekit subcommand.
type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"segment", "run segmentation workflows over a volume and ROI", runSegment},
	{"histogram", "print the intensity histogram of a volume", runHistogram},
	{"downsample", "reduce disjoint blocks of a volume", runDownsample},
	{"rescale", "apply the linear intensity transform", runRescale},
	{"autocrop", "crop a volume to its foreground bounding box", runAutocrop},
	{"smooth", "blur a volume with a Gaussian given by its FWHM", runSmooth},
	{"dog", "difference of two Gaussian smoothings", runDoG},
	{"preprocess", "clip, shift and median filter a volume for volume rendering", runPreprocess},
	{"stats", "measure stored segments and compare them with a reference", runStats},
	{"init-config", "write a default configuration file", runInitConfig},
}

// env carries what every command shares.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	input      string
	output     string
	verbose    bool
}

// newFlagSet returns a flag set for the named command with the common flags
// registered.
func newFlagSet(name string, c *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.register(fs)
	return fs
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "volumekit.yaml", "Configuration file")
	fs.StringVar(&c.input, "input", "", "Input volume (header path)")
	fs.StringVar(&c.output, "output", "", "Output path")
	fs.BoolVar(&c.verbose, "verbose", false, "Enable debug logging")
}

// load reads the configuration and builds the logger.
func (c *commonFlags) load() (*env, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewConsole(c.verbose || cfg.Output.Verbose)
	return &env{cfg: cfg, logger: logger}, nil
}

func (c *commonFlags) requireInput() error {
	if c.input == "" {
		return errors.New("missing -input")
	}
	return nil
}

func (c *commonFlags) requireOutput() error {
	if c.output == "" {
		return errors.New("missing -output")
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: volumekit <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'volumekit <command> -h' for the flags of a command.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(os.Args[2:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				os.Exit(0)
			}
			logger := logging.NewConsole(false)
			logger.Fatal().Err(err).Str("command", name).Msg("command failed")
		}
		return
	}

	if name == "-h" || name == "--help" || name == "help" {
		usage()
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(1)
}

// isSet reports whether the named flag was given on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// parseInts parses "2" or "2,2,1".
func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer list %q", s)
		}
		out[i] = v
	}
	return out, nil
}

// parseFloats parses "2" or "2,4".
func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, p := range parseList(s) {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid number list %q", s)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseList splits a comma separated list, dropping empty items.
func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
