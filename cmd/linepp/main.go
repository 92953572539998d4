package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fwessels/linepp/internal/config"
	"github.com/fwessels/linepp/internal/preprocessor"
	"github.com/fwessels/linepp/internal/resolver"
	"github.com/fwessels/linepp/internal/watch"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "linepp"
	app.Usage = "Expand macros, #if blocks and #include lines in a text file"
	app.ArgsUsage = "[input|-]"
	app.DisableSliceFlagSeparator = true
	app.Flags = []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "define",
			Aliases: []string{"D"},
			Usage:   "Define macro `NAME[=VALUE]` (VALUE defaults to 1)",
		},
		&cli.StringSliceFlag{
			Name:    "include-dir",
			Aliases: []string{"I"},
			Usage:   "Search `DIR` for #include files",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Read settings from INI `FILE`",
		},
		&cli.StringFlag{
			Name:  "defines",
			Usage: "Read macro definitions from YAML `FILE`",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write result to `FILE` instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "keep-comments",
			Usage: "Keep // comments in the output",
		},
		&cli.BoolFlag{
			Name:  "no-includes",
			Usage: "Reject every #include",
		},
		&cli.IntFlag{
			Name:  "max-include-depth",
			Usage: "Limit nested includes (0 = unlimited)",
		},
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "Reprocess whenever the input or an include directory changes",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log debug information to stderr",
		},
	}
	app.Action = runPreprocess
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "linepp: %v\n", err)
		os.Exit(1)
	}
}

type job struct {
	input    string
	output   string
	cfg      *config.Config
	includes preprocessor.Includes
	resolver *resolver.Resolver
	log      logrus.FieldLogger
	stdin    io.Reader
	stdout   io.Writer
}

func runPreprocess(c *cli.Context) error {
	if c.NArg() > 1 {
		return errors.Errorf("expected at most one input, got %d", c.NArg())
	}

	log := logrus.New()
	log.SetOutput(c.App.ErrWriter)
	if c.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	j, err := newJob(c, log)
	if err != nil {
		return err
	}

	if !c.Bool("watch") {
		return j.run()
	}
	if j.input == "-" {
		return errors.New("--watch needs an input file")
	}
	return j.watch(c.Context)
}

func newJob(c *cli.Context, log *logrus.Logger) (*job, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if path := c.String("defines"); path != "" {
		if err := cfg.LoadDefines(path); err != nil {
			return nil, err
		}
	}
	for _, d := range c.StringSlice("define") {
		if err := cfg.Define(d); err != nil {
			return nil, err
		}
	}
	if c.IsSet("keep-comments") {
		cfg.KeepComments = c.Bool("keep-comments")
	}
	if c.IsSet("no-includes") {
		cfg.Include.Disabled = c.Bool("no-includes")
	}
	if c.IsSet("max-include-depth") {
		if cfg.MaxIncludeDepth = c.Int("max-include-depth"); cfg.MaxIncludeDepth < 0 {
			return nil, errors.New("--max-include-depth must not be negative")
		}
	}

	j := &job{
		input:  "-",
		output: c.String("output"),
		cfg:    cfg,
		log:    log,
		stdin:  c.App.Reader,
		stdout: c.App.Writer,
	}
	if c.NArg() == 1 {
		j.input = c.Args().First()
	}

	// Relative directories from the config are searched next to the input,
	// -I directories relative to the working directory.
	base := "."
	if j.input != "-" {
		base = filepath.Dir(j.input)
	}
	var dirs []string
	for _, d := range cfg.Include.Dirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(base, d)
		}
		dirs = append(dirs, d)
	}
	dirs = append(dirs, c.StringSlice("include-dir")...)
	for i, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, errors.Wrapf(err, "include dir %s", d)
		}
		dirs[i] = abs
	}
	cfg.Include.Dirs = dirs

	if cfg.Include.Disabled {
		j.includes = preprocessor.NoIncludes{}
		return j, nil
	}
	r, err := resolver.New(osfs.New("/"), resolver.Options{
		Dirs:      dirs,
		Allow:     cfg.Include.Allow,
		CacheSize: cfg.Include.CacheSize,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	j.resolver, j.includes = r, r
	return j, nil
}

func (j *job) run() error {
	in := j.stdin
	if j.input != "-" {
		// *os.File names the stream, so includes are found next to the input.
		name, err := filepath.Abs(j.input)
		if err != nil {
			return errors.Wrap(err, "open input")
		}
		f, err := os.Open(name)
		if err != nil {
			return errors.Wrap(err, "open input")
		}
		defer f.Close()
		in = f
	}

	ctx := preprocessor.NewWith(j.includes)
	ctx.Log = j.log
	j.cfg.Apply(ctx)

	out, err := ctx.Process(in)
	if err != nil {
		var pe *preprocessor.Error
		if errors.As(err, &pe) && pe.Path == "" && j.input != "-" {
			pe.Path = j.input
		}
		return err
	}

	if j.output == "" {
		_, err = io.WriteString(j.stdout, out)
		return err
	}
	return os.WriteFile(j.output, []byte(out), 0o644)
}

func (j *job) watch(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := j.run(); err != nil {
		j.log.WithError(err).Error("preprocessing failed")
	}

	input, err := filepath.Abs(j.input)
	if err != nil {
		return errors.Wrap(err, "watch input")
	}
	paths := []string{input}
	for _, d := range j.cfg.Include.Dirs {
		if st, err := os.Stat(d); err == nil && st.IsDir() {
			paths = append(paths, d)
		}
	}
	return watch.Run(ctx, watch.Options{
		Paths: paths,
		Log:   j.log,
		OnChange: func(event fsnotify.Event) {
			if j.output != "" && sameFile(event.Name, j.output) {
				return
			}
			if j.resolver != nil {
				j.resolver.Invalidate()
			}
			if err := j.run(); err != nil {
				j.log.WithError(err).Error("preprocessing failed")
				return
			}
			j.log.WithField("input", j.input).Info("reprocessed")
		},
	})
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
