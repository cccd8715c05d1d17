// Package minio exposes an S3-compatible bucket as a remote tree. Object
// keys are split on "/" into directories the way the S3 console shows
// them; ETags serve as content references.
//
// Usage:
//
//	drv, err := minio.New(ctx, minio.Config{Endpoint: "localhost:9000", Bucket: "images"}, logger)
//	if err != nil { ... }
//	entries, err := drv.ListDirectory(ctx, "/albums")
package minio

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BackendName identifies this driver in logs and metrics
const BackendName = "minio"

// Config holds the connection parameters for one bucket
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix roots the tree below a key prefix inside the bucket
	Prefix string
	UseSSL bool
	Region string
}

// Driver reads a bucket as a tree.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client   *miniogo.Client
	bucket   string
	prefix   string
	logger   logging.Logger
	observer types.RequestObserver
}

// New connects to the endpoint and verifies the bucket exists
func New(ctx context.Context, cfg Config, logger logging.Logger, observer types.RequestObserver) (*Driver, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.NewRemoteFetchError("/", 0, "failed to create minio client", err)
	}

	d := &Driver{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		logger:   logger,
		observer: observer,
	}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// Ping verifies the bucket is reachable
func (d *Driver) Ping(ctx context.Context) error {
	start := time.Now()
	ok, err := d.client.BucketExists(ctx, d.bucket)
	d.observe(err, time.Since(start))
	if err != nil {
		return mapError(err, "/", "ping failed")
	}
	if !ok {
		return errors.NewRemoteFetchError("/", 404, "bucket "+d.bucket+" does not exist", nil)
	}
	return nil
}

// ListDirectory returns the immediate children of dir. Sub-prefixes become
// directory entries.
func (d *Driver) ListDirectory(ctx context.Context, dir string) ([]*types.Entry, error) {
	dir = types.NormalizePath(dir)
	listPrefix := keyPrefix(d.prefix, dir)

	start := time.Now()
	var entries []*types.Entry
	for obj := range d.client.ListObjects(ctx, d.bucket, miniogo.ListObjectsOptions{Prefix: listPrefix}) {
		if obj.Err != nil {
			d.observe(obj.Err, time.Since(start))
			return nil, mapError(obj.Err, dir, "failed to list objects")
		}
		if obj.Key == listPrefix {
			// folder marker object
			continue
		}
		entries = append(entries, objectToEntry(d.prefix, obj))
	}
	d.observe(nil, time.Since(start))

	if len(entries) == 0 && dir != "/" {
		return nil, errors.NewRemoteFetchError(dir, 404, "no objects under prefix", nil)
	}

	d.logger.Debug("Listed minio prefix",
		logging.F("bucket", d.bucket),
		logging.F("prefix", listPrefix),
		logging.F("count", len(entries)),
	)
	return entries, nil
}

// FetchBytes reads the object stored under ref (a bucket key)
func (d *Driver) FetchBytes(ctx context.Context, ref string) ([]byte, error) {
	start := time.Now()
	obj, err := d.client.GetObject(ctx, d.bucket, ref, miniogo.GetObjectOptions{})
	if err != nil {
		d.observe(err, time.Since(start))
		return nil, mapError(err, ref, "failed to get object")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	d.observe(err, time.Since(start))
	if err != nil {
		return nil, mapError(err, ref, "failed to read object")
	}
	return data, nil
}

// Close is a no-op; the SDK client holds no persistent connections
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) observe(err error, dur time.Duration) {
	if d.observer == nil {
		return
	}
	status := 200
	if err != nil {
		status = statusOf(err)
	}
	d.observer.ObserveRequest(BackendName, status, dur)
}

// keyPrefix converts a tree path into the listing prefix for the bucket
func keyPrefix(root, dir string) string {
	rel := strings.Trim(dir, "/")
	full := strings.Trim(path.Join(root, rel), "/")
	if full == "" || full == "." {
		return ""
	}
	return full + "/"
}

// objectToEntry maps a listing item to an Entry with a tree path relative to root
func objectToEntry(root string, obj miniogo.ObjectInfo) *types.Entry {
	key := obj.Key
	rel := key
	if root != "" {
		rel = strings.TrimPrefix(key, root+"/")
	}

	if strings.HasSuffix(rel, "/") {
		p := types.NormalizePath(rel)
		return &types.Entry{
			Name: path.Base(p),
			Path: p,
			Kind: types.EntryKindDirectory,
		}
	}

	p := types.NormalizePath(rel)
	return &types.Entry{
		Name:        path.Base(p),
		Path:        p,
		Kind:        types.EntryKindFile,
		Size:        obj.Size,
		ContentRef:  strings.Trim(obj.ETag, `"`),
		DownloadRef: key,
		ModifiedAt:  obj.LastModified,
	}
}
