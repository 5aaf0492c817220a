package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gcsBrowserURL = "https://console.cloud.google.com/storage/browser/"

// GCSStorage provisions folders as marker objects in a Cloud Storage bucket.
type GCSStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStorage creates a GCS client. Without a credentials file the
// application default credentials are used.
func NewGCSStorage(ctx context.Context, cfg GCSConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket missing")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket}, nil
}

// Close releases the underlying client.
func (g *GCSStorage) Close() error { return g.client.Close() }

// CreateFolder writes an empty "<parent>/<name>/" object.
func (g *GCSStorage) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	key := folderKey(parentID, name)
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/x-directory"
	if err := w.Close(); err != nil {
		return nil, googleUpstreamError(ErrFolderProvisioning, err)
	}
	return &Folder{ID: key, Link: gcsBrowserURL + url.PathEscape(g.name) + "/" + escapeSegments(key)}, nil
}

// GrantPublicRead makes the marker object readable by allUsers. Buckets with
// uniform bucket-level access reject object ACLs; that surfaces as a grant error.
func (g *GCSStorage) GrantPublicRead(ctx context.Context, folderID string) error {
	if err := g.bucket.Object(folderID).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 400 {
			return &UpstreamError{Op: ErrPermissionGrant, Status: gerr.Code, Message: "object ACLs disabled (uniform bucket-level access?): " + gerr.Message}
		}
		return googleUpstreamError(ErrPermissionGrant, err)
	}
	return nil
}

func escapeSegments(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
