package mpris

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"mediabridge/core/utils"
	"mediabridge/logger"
)

// iconResolver finds a player's logo through its desktop entry and the
// hicolor icon theme. Results are cached until a desktop entry changes.
type iconResolver struct {
	appDirs  []string
	iconDirs []string
	size     int
	maxBytes int

	mu    sync.Mutex
	cache map[string][]byte
}

func newIconResolver(dataDirs []string, size, maxBytes int) *iconResolver {
	r := &iconResolver{
		size:     size,
		maxBytes: maxBytes,
		cache:    make(map[string][]byte),
	}
	for _, dir := range dataDirs {
		r.appDirs = append(r.appDirs, filepath.Join(dir, "applications"))
		r.iconDirs = append(r.iconDirs, filepath.Join(dir, "icons", "hicolor"))
	}
	for _, dir := range dataDirs {
		r.iconDirs = append(r.iconDirs, filepath.Join(dir, "pixmaps"))
	}
	return r
}

// xdgDataDirs returns the user data dir followed by XDG_DATA_DIRS.
func xdgDataDirs() []string {
	var dirs []string
	if home := os.Getenv("XDG_DATA_HOME"); home != "" {
		dirs = append(dirs, home)
	} else if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share"))
	}
	system := os.Getenv("XDG_DATA_DIRS")
	if system == "" {
		system = "/usr/local/share:/usr/share"
	}
	for _, dir := range strings.Split(system, ":") {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Lookup returns the icon bytes for a desktop entry name such as
// "spotify" or "org.gnome.Rhythmbox3".
func (r *iconResolver) Lookup(entry string) ([]byte, error) {
	r.mu.Lock()
	if icon, ok := r.cache[entry]; ok {
		r.mu.Unlock()
		return icon, nil
	}
	r.mu.Unlock()

	name, err := r.iconName(entry)
	if err != nil {
		return nil, err
	}
	path, err := r.iconPath(name)
	if err != nil {
		return nil, err
	}
	icon, err := utils.ReadFileLimited(path, r.maxBytes)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[entry] = icon
	r.mu.Unlock()
	return icon, nil
}

func (r *iconResolver) invalidate() {
	r.mu.Lock()
	r.cache = make(map[string][]byte)
	r.mu.Unlock()
}

// iconName reads the Icon= key of the entry's desktop file.
func (r *iconResolver) iconName(entry string) (string, error) {
	for _, dir := range r.appDirs {
		f, err := os.Open(filepath.Join(dir, entry+".desktop"))
		if err != nil {
			continue
		}
		name := ""
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if v, ok := strings.CutPrefix(line, "Icon="); ok {
				name = strings.TrimSpace(v)
				break
			}
		}
		f.Close()
		if name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("no desktop entry with an icon for %q", entry)
}

// iconPath picks the themed PNG closest to the configured size. Absolute
// Icon= values are used as is.
func (r *iconResolver) iconPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	for _, dir := range r.iconDirs {
		if filepath.Base(dir) == "pixmaps" {
			if p := filepath.Join(dir, name+".png"); fileExists(p) {
				return p, nil
			}
			continue
		}
		for _, sizeDir := range r.sizeDirs(dir) {
			if p := filepath.Join(sizeDir, "apps", name+".png"); fileExists(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("icon %q not found", name)
}

// sizeDirs lists the NxN directories of a theme ordered by distance from
// the configured size.
func (r *iconResolver) sizeDirs(theme string) []string {
	entries, err := os.ReadDir(theme)
	if err != nil {
		return nil
	}
	type sized struct {
		path string
		diff int
	}
	var dirs []sized
	for _, e := range entries {
		var w, h int
		if _, err := fmt.Sscanf(e.Name(), "%dx%d", &w, &h); err != nil || w != h {
			continue
		}
		diff := w - r.size
		if diff < 0 {
			diff = -diff
		}
		dirs = append(dirs, sized{filepath.Join(theme, e.Name()), diff})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].diff < dirs[j].diff })

	paths := make([]string, len(dirs))
	for i, d := range dirs {
		paths[i] = d.path
	}
	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// watch clears the cache whenever a desktop entry is created, changed or
// removed, until ctx is done.
func (r *iconResolver) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create icon watcher: %w", err)
	}

	watched := 0
	for _, dir := range r.appDirs {
		if err := watcher.Add(dir); err != nil {
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return fmt.Errorf("no application directory to watch")
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.HasSuffix(event.Name, ".desktop") &&
					event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					r.invalidate()
					logger.Debug("desktop entry changed, icon cache cleared",
						logger.String("file", event.Name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("icon watcher error", logger.ErrorField(err))
			}
		}
	}()
	return nil
}
