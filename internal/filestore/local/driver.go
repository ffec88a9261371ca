// Package local implements filestore.Store on a directory tree: each bucket
// is a subdirectory of the root and each key a file path below it.
package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/filestore"
)

// Driver stores objects as files under root.
type Driver struct {
	root string
}

var _ filestore.Store = (*Driver)(nil)

// New creates root if needed.
func New(cfg *filestore.Config) (*Driver, error) {
	if cfg.Root == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "filestore.root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o750); err != nil {
		return nil, mapError(err, "create root")
	}
	return &Driver{root: cfg.Root}, nil
}

func (d *Driver) Ping(context.Context) error {
	if _, err := os.Stat(d.root); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() error { return nil }

func (d *Driver) bucketDir(bucket string) (string, error) {
	if err := database.ValidateIdentifier(strings.ReplaceAll(bucket, "-", "_")); err != nil {
		return "", errs.Newf(errs.ErrKindInvalidInput, "invalid bucket name %q", bucket)
	}
	return filepath.Join(d.root, bucket), nil
}

func (d *Driver) objectPath(bucket, key string) (string, error) {
	dir, err := d.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	if err := filestore.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(key)), nil
}

func (d *Driver) EnsureBucket(_ context.Context, bucket string) error {
	dir, err := d.bucketDir(bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return mapError(err, "create bucket")
	}
	return nil
}

// PutObject writes to a temporary file and renames it into place, so
// readers never see a partial object.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, _ int64, contentType string) (*filestore.ObjectInfo, error) {
	p, err := d.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	if err := d.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, mapError(err, "create object directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return nil, mapError(err, "create object")
	}
	defer os.Remove(tmp.Name())

	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return nil, mapError(err, "write object")
	}
	if err := tmp.Close(); err != nil {
		return nil, mapError(err, "write object")
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return nil, mapError(err, "commit object")
	}

	info, err := d.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	info.ETag = hex.EncodeToString(h.Sum(nil))
	if contentType != "" {
		info.ContentType = contentType
	}
	return info, nil
}

func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	p, err := d.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	info, err := d.StatObject(ctx, bucket, key)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &object{File: f, info: info}, nil
}

func (d *Driver) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	p, err := d.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	if st.IsDir() {
		return nil, errs.Newf(errs.ErrKindNotFound, "object %s/%s not found", bucket, key)
	}
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  contentTypeOf(key),
		LastModified: st.ModTime(),
	}, nil
}

func (d *Driver) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	dir, err := d.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	var keys []filestore.ObjectInfo
	seenDirs := map[string]bool{}
	err = filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, opts.Prefix) {
			return nil
		}

		if !opts.Recursive {
			if i := strings.Index(key[len(opts.Prefix):], "/"); i >= 0 {
				prefix := key[:len(opts.Prefix)+i+1]
				if !seenDirs[prefix] {
					seenDirs[prefix] = true
					keys = append(keys, filestore.ObjectInfo{Key: prefix, Size: -1, IsDir: true})
				}
				return nil
			}
		}

		info, err := e.Info()
		if err != nil {
			return err
		}
		keys = append(keys, filestore.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			ContentType:  contentTypeOf(key),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}
	return keys, nil
}

func contentTypeOf(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func mapError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindIO, msg, err)
	}
}

type object struct {
	*os.File
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return o.info }
