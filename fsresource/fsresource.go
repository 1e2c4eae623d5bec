// Package fsresource exposes the regular files under a directory root as MCP
// resources. Each file maps to a URI of the form <scheme>://<relative path>,
// with the MIME type inferred from the extension. A Provider can also watch
// the root and report changed resource URIs, which servers typically turn
// into resources/updated broadcasts.
package fsresource

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/mcprelay/mcprelay/capability"
	"github.com/mcprelay/mcprelay/mcp"
	"github.com/mcprelay/mcprelay/registry"
	"github.com/mcprelay/mcprelay/request"
)

// Provider serves a directory subtree as resources.
type Provider struct {
	root   string
	scheme string
	log    *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// New builds a Provider over root. The scheme qualifies every resource URI;
// "files" yields URIs like files://docs/readme.md.
func New(root, scheme string, opts ...Option) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	p := &Provider{root: abs, scheme: scheme, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Register walks the root and registers one resource per regular file.
func (p *Provider) Register(reg *registry.Registry) error {
	uris, err := p.list()
	if err != nil {
		return err
	}
	for _, uri := range uris {
		rel := p.relPath(uri)
		desc := mcp.Resource{
			URI:      uri,
			Name:     filepath.Base(rel),
			MimeType: mimeTypeFor(rel),
		}
		res := capability.ResourceFunc(desc, func(ctx context.Context, rc *request.Context, params map[string]any) (any, error) {
			return p.read(rel)
		})
		if err := reg.RegisterResource(res); err != nil {
			return fmt.Errorf("register %s: %w", uri, err)
		}
	}
	return nil
}

// list returns the sorted URIs of all regular files under the root.
func (p *Provider) list() ([]string, error) {
	var uris []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		uris = append(uris, p.uriFor(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", p.root, err)
	}
	sort.Strings(uris)
	return uris, nil
}

func (p *Provider) uriFor(rel string) string {
	return p.scheme + "://" + filepath.ToSlash(rel)
}

func (p *Provider) relPath(uri string) string {
	return strings.TrimPrefix(uri, p.scheme+"://")
}

// read loads one file, rejecting paths that escape the root.
func (p *Provider) read(rel string) (any, error) {
	full := filepath.Join(p.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, p.root+string(filepath.Separator)) && full != p.root {
		return nil, capability.InvalidParams("path escapes resource root")
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, capability.NotFound("resource file missing: " + rel)
		}
		return nil, capability.Internalf("read %s: %v", rel, err)
	}
	return b, nil
}

// Watch reports changed resource URIs until the context is canceled. Create,
// write, rename and remove events all surface the affected URI; callers
// decide what a change means (typically a resources/updated broadcast).
func (p *Provider) Watch(ctx context.Context, onChange func(uri string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the whole subtree; fsnotify is not recursive on its own.
	err = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", p.root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// New directories need their own watch.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := watcher.Add(ev.Name); addErr != nil {
						p.log.Warn("fsresource.watch.add_fail", slog.String("err", addErr.Error()))
					}
					continue
				}
			}
			rel, relErr := filepath.Rel(p.root, ev.Name)
			if relErr != nil {
				continue
			}
			onChange(p.uriFor(filepath.ToSlash(rel)))
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("fsresource.watch.fail", slog.String("err", werr.Error()))
		}
	}
}

// extraMimeTypes covers common text extensions the platform table may lack.
var extraMimeTypes = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
	".go":   "text/x-go",
}

func mimeTypeFor(rel string) string {
	ext := strings.ToLower(filepath.Ext(rel))
	if mt, ok := extraMimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
