package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"emumips/sim"
)

type options struct {
	verbose    bool
	output     string
	configFile string
	noImage    bool
	maxSegment string
	maxImage   string
	overlap    string
	files      []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	// --help and --version end the run; parsing continues after them, so
	// remember the status instead of exiting.
	exit := -1
	app := kingpin.New(filepath.Base(os.Args[0]), "Load MIPS32 big-endian O32 executables and build their process images.").
		UsageWriter(stdout).
		ErrorWriter(stderr).
		Terminate(func(status int) {
			if exit < 0 {
				exit = status
			}
		})
	app.Version(version.Print("emumips"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').BoolVar(&opts.verbose)
	app.Flag("output", "How to print each executable: tree, json or table.").Default("tree").EnumVar(&opts.output, "tree", "json", "table")
	app.Flag("config.file", "YAML file with loader settings.").StringVar(&opts.configFile)
	app.Flag("no-image", "Only decode; do not assemble the process image.").BoolVar(&opts.noImage)
	app.Flag("max-segment-size", "Largest segment or section the loader will allocate, e.g. 64MiB.").PlaceHolder("SIZE").StringVar(&opts.maxSegment)
	app.Flag("max-image-size", "Largest process image the loader will build, e.g. 1GiB.").PlaceHolder("SIZE").StringVar(&opts.maxImage)
	app.Flag("overlap", "What to do when placements overlap: overwrite or strict.").EnumVar(&opts.overlap, string(sim.OverlapOverwrite), string(sim.OverlapStrict))
	app.Arg("elf", "Executables to load.").Required().StringsVar(&opts.files)

	_, err := app.Parse(args)
	if exit >= 0 {
		return exit
	}
	if err != nil {
		return checkError(stderr, err)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	if !opts.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg, err := loadConfig(afero.NewOsFs(), opts)
	if err != nil {
		return checkError(stderr, err)
	}

	reg := prometheus.NewRegistry()
	loader := sim.NewLoader(cfg, logger, sim.NewMetrics(reg))
	defer logMetrics(logger, reg)

	for _, file := range opts.files {
		if err := loadOne(stdout, logger, loader, file, opts); err != nil {
			return checkError(stderr, errors.Wrap(err, file))
		}
	}
	return 0
}

func loadOne(w io.Writer, logger log.Logger, loader *sim.Loader, file string, opts options) error {
	f, err := loader.LoadFile(file)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "loaded executable", "file", file, "progs", len(f.Progs), "sections", len(f.Sections))

	if err := render(w, opts.output, file, f); err != nil {
		return err
	}
	if opts.noImage {
		return nil
	}

	img, err := loader.Assemble(f)
	if err != nil {
		return err
	}
	return renderImage(w, f, img)
}

func logMetrics(logger log.Logger, reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to gather metrics", "err", err)
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			kv := []interface{}{"metric", mf.GetName(), "value", m.GetCounter().GetValue()}
			for _, l := range m.GetLabel() {
				kv = append(kv, l.GetName(), l.GetValue())
			}
			level.Debug(logger).Log(kv...)
		}
	}
}

func checkError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
	return 1
}
