// mkimage creates a formatted flash image and fills it with the regular files
// of a directory. Subdirectories are skipped, the volume has none.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aligator/flashfat"
	"github.com/aligator/flashfat/internal/humanize"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

type options struct {
	out      string
	from     string
	clusters int
	files    int
	stamp    string
	verbose  bool
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.out, "out", "o", "flash.img", "path of the image to create, an existing file is replaced")
	fs.StringVarP(&o.from, "from", "f", "", "directory whose regular files are copied into the image")
	fs.IntVar(&o.clusters, "clusters", flashfat.DefaultMaxClusters, "number of clusters of the data region")
	fs.IntVar(&o.files, "files", flashfat.DefaultMaxFiles, "number of slots of the file table")
	fs.StringVar(&o.stamp, "time", "", "RFC 3339 time to stamp all files with, for reproducible images")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log every flash operation")
}

func main() {
	var o options
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	o.register(flags)
	flags.Parse(os.Args[1:])

	if err := run(afero.NewOsFs(), o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(hostFs afero.Fs, o options) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}

	cfg := flashfat.DefaultConfig()
	cfg.MaxClusters = o.clusters
	cfg.MaxFiles = o.files
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if o.stamp != "" {
		t, err := time.Parse(time.RFC3339, o.stamp)
		if err != nil {
			return fmt.Errorf("--time: %w", err)
		}
		cfg.Clock = flashfat.FixedClock(t)
	}

	if err := cfg.Geometry.Validate(); err != nil {
		return err
	}

	flash, err := flashfat.CreateImage(hostFs, o.out, cfg.TotalSectors())
	if err != nil {
		return err
	}

	volume, err := flashfat.NewVolume(flash, cfg)
	if err == nil {
		err = volume.Format()
	}
	if err == nil && o.from != "" {
		err = copyDir(hostFs, o.from, flashfat.New(volume))
	}
	if err == nil {
		err = summary(volume)
	}

	return errors.Join(err, flash.Sync(), flash.Close())
}

// copyDir copies the regular files directly inside of dir.
func copyDir(hostFs afero.Fs, dir string, fat *flashfat.Fs) error {
	entries, err := afero.ReadDir(hostFs, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}

		data, err := afero.ReadFile(hostFs, filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		if err := afero.WriteFile(fat, entry.Name(), data, entry.Mode().Perm()); err != nil {
			return err
		}
		fmt.Printf("%-40s %s\n", entry.Name(), humanize.Bytes(uint64(len(data))))
	}
	return nil
}

func summary(volume *flashfat.Volume) error {
	stat, err := volume.Stat()
	if err != nil {
		return err
	}

	fmt.Printf("%d files, %s free (%s)\n", stat.Files, humanize.Bytes(uint64(stat.FreeBytes())), stat.Geometry)
	return nil
}
