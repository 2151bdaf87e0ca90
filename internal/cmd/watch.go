package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/dagucloud/azpipe/internal/cmn/fileutil"
	"github.com/dagucloud/azpipe/internal/cmn/logger"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// watchPipeline runs fn once, then again after every change to a YAML file
// under the pipeline's directory or a mapped repository. Failures of fn are
// reported and watching continues. It returns when the context is done.
func watchPipeline(ctx *Context, file string, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	opts, err := ctx.ExpandOptions(file)
	if err != nil {
		return err
	}
	roots := []string{filepath.Dir(fileutil.ResolvePathOrBlank(file))}
	for _, r := range opts.Repositories {
		if r.Location != "" {
			roots = append(roots, r.Location)
		}
	}
	dirs, err := watchDirs(roots...)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info(ctx, "Watching for changes", tag.File(file), tag.Count(len(dirs)))

	run := func() {
		if err := fn(); err != nil {
			_, _ = fmt.Fprint(ctx.Command.ErrOrStderr(), ctx.Renderer.RenderError(err))
		}
	}
	run()

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !fileutil.IsYAMLFile(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug(ctx, "File changed", tag.File(ev.Name))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			trigger = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "Watcher error", tag.Error(err))
		case <-trigger:
			trigger = nil
			run()
		}
	}
}

// watchDirs returns each root and every directory beneath it that holds a
// YAML file. fsnotify watches are not recursive.
func watchDirs(roots ...string) ([]string, error) {
	var dirs []string
	for _, root := range roots {
		if !fileutil.IsDir(root) {
			continue
		}
		if !slices.Contains(dirs, root) {
			dirs = append(dirs, root)
		}
		matches, err := doublestar.Glob(os.DirFS(root), "**/*.{yml,yaml}")
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
		for _, m := range matches {
			dir := filepath.Join(root, filepath.Dir(filepath.FromSlash(m)))
			if !slices.Contains(dirs, dir) {
				dirs = append(dirs, dir)
			}
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}
