package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// watchCmd is a diagnostic: it tails filesystem notifications under the
// storage root and logs database/table directories as they appear or
// disappear. It is not part of fsdb's concurrency model (the engine takes
// no locks and assumes caller-owned concurrency) — this is purely an
// observability aid for an operator watching a root directory from outside
// the process that owns it.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the storage root for database/table directory changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(viper.GetString("root"))
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("fsdb: creating storage root %q: %w", root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchTreeRecursively(watcher, root); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	fmt.Printf("watching %q for changes (ctrl-c to stop)\n", root)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleWatchEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("fsdb: watch error: %v", err)
		case <-sigCh:
			return nil
		}
	}
}

func handleWatchEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			log.Printf("fsdb: directory created: %s", event.Name)
			if err := watcher.Add(event.Name); err != nil {
				log.Printf("fsdb: warning: could not watch new directory %q: %v", event.Name, err)
			}
		}
	case event.Op&fsnotify.Remove != 0:
		log.Printf("fsdb: removed: %s", event.Name)
	case event.Op&fsnotify.Rename != 0:
		log.Printf("fsdb: renamed: %s", event.Name)
	}
}

func addWatchTreeRecursively(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("fsdb: watching %q: %w", path, err)
			}
		}
		return nil
	})
}
