package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"
	"github.com/spf13/cobra"

	"github.com/forgeci/forgecfg/pkg/config"
	"github.com/forgeci/forgecfg/pkg/logger"
)

// Coalesce rapid editor write bursts into one re-validation, but never sit on
// a pending change for longer than a second.
const (
	fileChangeDebounceWait    = 200 * time.Millisecond
	fileChangeDebounceMaxWait = 1 * time.Second
)

var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
	"vendor":       true,
	"tmp":          true,
	".cache":       true,
}

func ValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate a project configuration without emitting a snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setupContext(cmd)
			if err != nil {
				return err
			}
			dir, err := resolveDir(cmd, args)
			if err != nil {
				return err
			}
			watch, err := cmd.Flags().GetBool("watch")
			if err != nil {
				return err
			}
			if !watch {
				if _, err := compileProject(ctx, cfg, cmd, dir); err != nil {
					return err
				}
				logger.FromContext(ctx).Info("configuration is valid", "dir", dir)
				return nil
			}
			return watchAndValidate(ctx, cfg, cmd, dir)
		},
	}
	cmd.Flags().Bool("watch", false, "Re-validate whenever a config file changes")
	addLoadFlags(cmd.Flags())
	return cmd
}

// watchAndValidate validates once, then keeps re-validating on YAML changes
// until the context is canceled. Validation failures are reported and watched
// through; only watcher failures end the loop.
func watchAndValidate(ctx context.Context, cfg *config.Config, cmd *cobra.Command, dir string) error {
	log := logger.FromContext(ctx)
	runValidation := func() {
		if _, err := compileProject(ctx, cfg, cmd, dir); err != nil {
			log.Error("configuration is invalid", "error", err)
			return
		}
		log.Info("configuration is valid", "dir", dir)
	}
	runValidation()

	watcher, err := setupWatcher(ctx, dir)
	if err != nil {
		return err
	}
	defer watcher.Close()

	debouncedValidation, cancelDebounce := debounce.NewWithMaxWait(
		fileChangeDebounceWait,
		fileChangeDebounceMaxWait,
		runValidation,
	)
	defer cancelDebounce()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping file watcher")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			log.Debug("detected config change", "file", event.Name)
			debouncedValidation()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}

// setupWatcher watches every directory under root containing YAML files.
// Watching directories instead of individual files scales better and also
// catches newly created config files.
func setupWatcher(ctx context.Context, root string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = watcher.Close()
	}()

	dirsToWatch := map[string]bool{root: true}
	if err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && ignoredDirs[filepath.Base(path)] {
			return filepath.SkipDir
		}
		ext := filepath.Ext(path)
		if !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			dirsToWatch[filepath.Dir(path)] = true
		}
		return nil
	}); err != nil {
		watcher.Close()
		return nil, err
	}
	for dir := range dirsToWatch {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	logger.FromContext(ctx).Info("file watcher initialized", "dirs", len(dirsToWatch))
	return watcher, nil
}
