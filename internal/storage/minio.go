package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage provisions "folders" as prefix marker objects in a MinIO bucket.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string

	// serializes bucket policy read-modify-write within this process
	policyMu sync.Mutex
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(cfg *MinIOConfig) (*MinIOStorage, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket, publicURL: strings.TrimRight(public, "/")}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// folderKey returns "<parent>/<name>/" with an empty parent meaning the bucket root.
func folderKey(parentID, name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	parent := strings.Trim(parentID, "/")
	if parent == "" {
		return name + "/"
	}
	return parent + "/" + name + "/"
}

// objectURL escapes each path segment of key below base/bucket.
func objectURL(base, bucket, key string) string {
	segs := strings.Split(strings.TrimSuffix(key, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return base + "/" + url.PathEscape(bucket) + "/" + strings.Join(segs, "/") + "/"
}

// CreateFolder writes an empty marker object for the folder prefix.
func (s *MinIOStorage) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	key := folderKey(parentID, name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{ContentType: "application/x-directory"})
	if err != nil {
		return nil, minioUpstreamError(ErrFolderProvisioning, err)
	}
	return &Folder{ID: key, Link: objectURL(s.publicURL, s.bucket, key)}, nil
}

// GrantPublicRead allows anonymous GetObject on everything below the folder prefix.
func (s *MinIOStorage) GrantPublicRead(ctx context.Context, folderID string) error {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()

	current, err := s.client.GetBucketPolicy(ctx, s.bucket)
	if err != nil {
		return minioUpstreamError(ErrPermissionGrant, err)
	}
	policy, err := addPublicReadStatement(current, s.bucket, folderID)
	if err != nil {
		return &UpstreamError{Op: ErrPermissionGrant, Message: err.Error()}
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return minioUpstreamError(ErrPermissionGrant, err)
	}
	return nil
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string          `json:"Sid,omitempty"`
	Effect    string          `json:"Effect"`
	Principal json.RawMessage `json:"Principal"`
	Action    json.RawMessage `json:"Action"`
	Resource  json.RawMessage `json:"Resource"`
}

// addPublicReadStatement merges an anonymous read statement for prefix into an
// existing policy document (which may be empty). Existing statements are kept.
func addPublicReadStatement(current, bucket, prefix string) (string, error) {
	p := bucketPolicy{Version: "2012-10-17"}
	if strings.TrimSpace(current) != "" {
		if err := json.Unmarshal([]byte(current), &p); err != nil {
			return "", fmt.Errorf("parse bucket policy: %w", err)
		}
	}
	resource := "arn:aws:s3:::" + path.Join(bucket, prefix) + "/*"
	sum := sha256.Sum256([]byte(prefix))
	sid := "PublicRead" + hex.EncodeToString(sum[:8])
	for _, st := range p.Statement {
		if st.Sid == sid {
			return marshalPolicy(p)
		}
	}
	res, _ := json.Marshal([]string{resource})
	p.Statement = append(p.Statement, policyStatement{
		Sid:       sid,
		Effect:    "Allow",
		Principal: json.RawMessage(`{"AWS":["*"]}`),
		Action:    json.RawMessage(`["s3:GetObject"]`),
		Resource:  res,
	})
	return marshalPolicy(p)
}

func marshalPolicy(p bucketPolicy) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func minioUpstreamError(op, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Message: resp.Code + ": " + resp.Message}
	}
	return &UpstreamError{Op: op, Message: err.Error()}
}
