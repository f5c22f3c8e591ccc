// Package file implements the local filesystem adapter. A directory tree
// is walked for text files, which are sampled line by line the same way
// object storage is.
package file

import (
	"context"
	stderrors "errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter samples files under a root directory. Units are slash-separated
// paths relative to the root.
type Adapter struct {
	cfg  *config.ScanConfig
	src  *config.FileConfig
	root string
	log  *zap.Logger
}

// New builds a file adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid file url")
	}
	src, err := config.FileFromURL(u)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid file url")
	}
	return &Adapter{
		cfg:  cfg,
		src:  src,
		root: filepath.Clean(src.Root),
		log:  logger.Get().With(zap.String("adapter", "file")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "file" }

// Connect verifies the root is a readable directory.
func (a *Adapter) Connect(ctx context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "root "+a.root+" is not readable")
	}
	if !info.IsDir() {
		return errors.New(errors.ErrorTypeConfig, "root "+a.root+" is not a directory")
	}
	a.log.Info("connected", zap.String("root", a.root))
	return nil
}

// Disconnect holds no resources to release.
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

// ListUnits walks the tree and keeps text files under the size cap.
// Dot-directories are pruned; symlinks are skipped unless the scan asks
// to follow them.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	maxBytes := int64(a.src.MaxFileSizeMB) << 20

	var units []string
	skipped := 0
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == a.root {
				return err
			}
			// Unreadable subtree; keep scanning the rest.
			skipped++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != a.root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !a.src.FollowSymlinks {
				skipped++
				return nil
			}
			resolved, err := os.Stat(path)
			if err != nil || !resolved.Mode().IsRegular() {
				skipped++
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			// Symlink targets report through Stat instead.
			info, err = os.Stat(path)
			if err != nil {
				skipped++
				return nil
			}
		}
		if !base.TextualName(d.Name()) || info.Size() > maxBytes {
			skipped++
			return nil
		}

		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return err
		}
		units = append(units, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, classify(err, "walk "+a.root)
	}

	if skipped > 0 {
		a.log.Debug("files skipped", zap.Int("count", skipped))
	}
	return units, nil
}

// FetchSamples opens the file, decompresses it if its name calls for
// that, and samples its lines.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	f, err := os.Open(filepath.Join(a.root, filepath.FromSlash(unit)))
	if err != nil {
		return nil, classify(err, "open "+unit)
	}
	defer f.Close()

	r, cleanup, err := base.OpenDecompressed(f, unit)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return base.ScanLines(r, unit, nil, limit)
}

// classify maps filesystem errors onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.Wrap(err, errors.ErrorTypeUnit, operation+": file vanished")
	case stderrors.Is(err, fs.ErrPermission):
		return errors.Wrap(err, errors.ErrorTypePermission, operation+": permission denied")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrorTypeTimeout, operation+" interrupted")
	default:
		return errors.Wrap(err, errors.ErrorTypeData, operation+" failed")
	}
}
