// flashfat inspects and modifies flash images holding a flashfat volume.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/aligator/flashfat"
	"github.com/aligator/flashfat/internal/humanize"
	"github.com/aligator/flashfat/internal/imagelock"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "flashfat",
		Usage:   "Work with the files of a flashfat image",
		Version: "0.1.0",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path of the flash image",
				Value:   "flash.img",
				EnvVars: []string{"FLASHFAT_IMAGE"},
			},
			&cli.IntFlag{
				Name:    "clusters",
				Usage:   "number of clusters of the data region",
				Value:   flashfat.DefaultMaxClusters,
				EnvVars: []string{"FLASHFAT_CLUSTERS"},
			},
			&cli.IntFlag{
				Name:    "files",
				Usage:   "number of slots of the file table",
				Value:   flashfat.DefaultMaxFiles,
				EnvVars: []string{"FLASHFAT_FILES"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"FLASHFAT_LOG_LEVEL"},
			},
		},

		Before: func(c *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
				return cli.Exit(fmt.Sprintf("invalid log level %q", c.String("log-level")), 2)
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},

		Commands: []*cli.Command{
			{
				Name:   "format",
				Usage:  "create the image if needed and format it",
				Action: format,
			},
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "list all files",
				Action: func(c *cli.Context) error {
					return withFs(c, list)
				},
			},
			{
				Name:      "put",
				Usage:     "copy a local file into the image",
				ArgsUsage: "<src> [name]",
				Action: func(c *cli.Context) error {
					return withFs(c, put)
				},
			},
			{
				Name:      "get",
				Usage:     "copy a file out of the image",
				ArgsUsage: "<name> [dst]",
				Action: func(c *cli.Context) error {
					return withFs(c, get)
				},
			},
			{
				Name:      "cat",
				Usage:     "print a file",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					return withFs(c, cat)
				},
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Usage:     "delete a file",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					return withFs(c, remove)
				},
			},
			{
				Name:      "mv",
				Aliases:   []string{"rename"},
				Usage:     "rename a file, an existing target is replaced",
				ArgsUsage: "<old> <new>",
				Action: func(c *cli.Context) error {
					return withFs(c, rename)
				},
			},
			{
				Name:  "df",
				Usage: "show the usage of the volume",
				Action: func(c *cli.Context) error {
					return withFs(c, df)
				},
			},
		},
	}
}

func config(c *cli.Context) flashfat.Config {
	cfg := flashfat.DefaultConfig()
	cfg.MaxClusters = c.Int("clusters")
	cfg.MaxFiles = c.Int("files")
	cfg.Logger = logger
	return cfg
}

// openImage opens the image and locks it for this process.
func openImage(path string, create bool, geometry flashfat.Geometry) (*flashfat.ImageFlash, func() error, error) {
	osFs := afero.NewOsFs()

	var (
		flash *flashfat.ImageFlash
		err   error
	)
	if _, statErr := osFs.Stat(path); create && errors.Is(statErr, os.ErrNotExist) {
		flash, err = flashfat.CreateImage(osFs, path, geometry.TotalSectors())
	} else {
		flash, err = flashfat.OpenImage(osFs, path)
	}
	if err != nil {
		return nil, nil, err
	}

	unlock, err := imagelock.Lock(flash.File())
	if err != nil {
		flash.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	closer := func() error {
		syncErr := flash.Sync()
		return errors.Join(syncErr, unlock(), flash.Close())
	}
	return flash, closer, nil
}

func format(c *cli.Context) error {
	cfg := config(c)
	if err := cfg.Geometry.Validate(); err != nil {
		return err
	}

	flash, closer, err := openImage(c.String("image"), true, cfg.Geometry)
	if err != nil {
		return err
	}

	volume, err := flashfat.NewVolume(flash, cfg)
	if err == nil {
		err = volume.Format()
	}
	if err = errors.Join(err, closer()); err != nil {
		return err
	}

	fmt.Printf("formatted %s: %s\n", c.String("image"), cfg.Geometry)
	return nil
}

// withFs mounts the image and runs fn on it.
func withFs(c *cli.Context, fn func(c *cli.Context, fs *flashfat.Fs) error) error {
	cfg := config(c)
	flash, closer, err := openImage(c.String("image"), false, cfg.Geometry)
	if err != nil {
		return err
	}

	volume, err := flashfat.NewVolume(flash, cfg)
	if err == nil {
		err = volume.Mount()
	}
	if err == nil {
		err = fn(c, flashfat.New(volume))
	}
	return errors.Join(err, closer())
}

func requireArgs(c *cli.Context, least, most int) error {
	if c.NArg() < least || c.NArg() > most {
		return cli.Exit(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return nil
}

func list(c *cli.Context, fs *flashfat.Fs) error {
	root, err := fs.Open("/")
	if err != nil {
		return err
	}
	defer root.Close()

	infos, err := root.Readdir(-1)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, info := range infos {
		d := info.Sys().(flashfat.Descriptor)

		flags := []byte("--")
		if d.IsReadOnly() {
			flags[0] = 'r'
		}
		if d.InUse {
			flags[1] = 'o'
		}

		fmt.Fprintf(w, "%s\t%s\t%s\tcluster %d\t%s\n", flags, humanize.Bytes(uint64(info.Size())), info.ModTime().Format("2006-01-02 15:04:05"), d.FirstCluster, info.Name())
	}
	return w.Flush()
}

func put(c *cli.Context, fs *flashfat.Fs) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}

	src := c.Args().Get(0)
	name := filepath.Base(src)
	if c.NArg() == 2 {
		name = c.Args().Get(1)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return afero.WriteFile(fs, name, data, 0666)
}

func get(c *cli.Context, fs *flashfat.Fs) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}

	name := c.Args().Get(0)
	dst := name
	if c.NArg() == 2 {
		dst = c.Args().Get(1)
	}

	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0666)
}

func cat(c *cli.Context, fs *flashfat.Fs) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}

	file, err := fs.Open(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(os.Stdout, file)
	return err
}

func remove(c *cli.Context, fs *flashfat.Fs) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	return fs.Remove(c.Args().Get(0))
}

func rename(c *cli.Context, fs *flashfat.Fs) error {
	if err := requireArgs(c, 2, 2); err != nil {
		return err
	}
	return fs.Rename(c.Args().Get(0), c.Args().Get(1))
}

func df(c *cli.Context, fs *flashfat.Fs) error {
	stat, err := fs.Volume().Stat()
	if err != nil {
		return err
	}

	total := uint64(stat.Capacity())
	free := uint64(stat.FreeBytes())

	fmt.Printf("geometry  %s\n", stat.Geometry)
	fmt.Printf("files     %d of %d (%d open)\n", stat.Files, stat.MaxFiles, stat.OpenFiles)
	fmt.Printf("clusters  %d of %d free\n", stat.FreeClusters, stat.MaxClusters)
	fmt.Printf("space     %s used, %s free, %s in use\n", humanize.Bytes(total-free), humanize.Bytes(free), humanize.Percent(total-free, total))
	return nil
}
