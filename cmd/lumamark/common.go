package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/banshee-data/lumamark/internal/config"
	"github.com/banshee-data/lumamark/internal/db"
	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/watermark"
)

// commonFlags are accepted by every command that touches images.
type commonFlags struct {
	configPath string
	dbPath     string
	debug      bool
}

func (c *cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Tuning config JSON file")
	fs.StringVar(&cf.dbPath, "db", "", "SQLite registry to record runs in")
	fs.BoolVar(&cf.debug, "debug", false, "Enable debug logging")
	return cf
}

// tuning loads the config file, or the built-in defaults when none is given.
func (cf *commonFlags) tuning() (*config.TuningConfig, error) {
	monitoring.SetDebug(cf.debug)
	if cf.configPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(cf.configPath)
}

// openDB opens the registry, or returns nil when --db was not given.
func (cf *commonFlags) openDB() (*db.DB, error) {
	if cf.dbPath == "" {
		return nil, nil
	}
	return db.NewDB(cf.dbPath)
}

// paramFlags override individual tuning keys.
type paramFlags struct {
	layout        string
	regions       int
	edgeThreshold int
}

func addParamFlags(fs *flag.FlagSet) *paramFlags {
	pf := &paramFlags{}
	fs.StringVar(&pf.layout, "layout", "", "Region layout: tiled or per-region")
	fs.IntVar(&pf.regions, "regions", 0, "Number of replica regions in the tiled layout")
	fs.IntVar(&pf.edgeThreshold, "edge-threshold", -1, "Edge-block threshold Th")
	return pf
}

func (pf *paramFlags) apply(p *watermark.Params) {
	if pf.layout != "" {
		p.Layout = pf.layout
	}
	if pf.regions > 0 {
		p.Replicas = pf.regions
	}
	if pf.edgeThreshold >= 0 {
		p.EdgeThreshold = pf.edgeThreshold
	}
}

// positionalInt parses an optional trailing integer argument.
func positionalInt(args []string, i int, name string) (int, bool, error) {
	if len(args) <= i {
		return 0, false, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer, got %q", name, args[i])
	}
	return v, true, nil
}

// params builds the watermark parameters from config and flags.
func (c *cli) params(cf *commonFlags, pf *paramFlags) (watermark.Params, error) {
	cfg, err := cf.tuning()
	if err != nil {
		return watermark.Params{}, err
	}
	p := watermark.ParamsFromTuning(cfg)
	if pf != nil {
		pf.apply(&p)
	}
	if err := p.Validate(); err != nil {
		return watermark.Params{}, err
	}
	return p, nil
}

// usageError reports a bad invocation and returns the usage exit code.
func (c *cli) usageError(fs *flag.FlagSet, format string, args ...interface{}) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	fs.Usage()
	return exitUsage
}

// fail reports err and returns the failure exit code.
func (c *cli) fail(err error) int {
	c.log.Printf("error: %v", err)
	return exitFailure
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return 0, true
}
