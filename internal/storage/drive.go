package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	driveFolderMimeType = "application/vnd.google-apps.folder"
	driveFolderURL      = "https://drive.google.com/drive/folders/"
)

// DriveStorage provisions folders in Google Drive.
type DriveStorage struct {
	srv *drive.Service
}

// NewDriveStorage builds a Drive client from a service-account key file.
// When cfg.ProxyURL is set, both API and token requests go through the proxy.
func NewDriveStorage(ctx context.Context, cfg DriveConfig) (*DriveStorage, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("drive credentials file missing")
	}
	var opts []option.ClientOption
	if cfg.ProxyURL != "" {
		client, err := proxiedDriveClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithHTTPClient(client))
	} else {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(drive.DriveScope))
	}
	return newDriveStorage(ctx, opts...)
}

func newDriveStorage(ctx context.Context, opts ...option.ClientOption) (*DriveStorage, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive new service: %w", err)
	}
	return &DriveStorage{srv: srv}, nil
}

func proxiedDriveClient(ctx context.Context, cfg DriveConfig) (*http.Client, error) {
	proxy, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse drive proxy url: %w", err)
	}
	key, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = http.ProxyURL(proxy)
	// the token source and the returned client both pick the proxied client from ctx
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: tr})

	creds, err := google.CredentialsFromJSON(ctx, key, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// CreateFolder creates a folder named name under parentID.
func (d *DriveStorage) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: driveFolderMimeType,
		Parents:  []string{parentID},
	}
	f, err := d.srv.Files.Create(meta).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, googleUpstreamError(ErrFolderProvisioning, err)
	}
	link := f.WebViewLink
	if link == "" {
		link = driveFolderURL + f.Id
	}
	return &Folder{ID: f.Id, Link: link}, nil
}

// GrantPublicRead adds an anyone/reader permission to the folder.
func (d *DriveStorage) GrantPublicRead(ctx context.Context, folderID string) error {
	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	_, err := d.srv.Permissions.Create(folderID, perm).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return googleUpstreamError(ErrPermissionGrant, err)
	}
	return nil
}

func googleUpstreamError(op, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return &UpstreamError{Op: op, Status: gerr.Code, Message: msg}
	}
	return &UpstreamError{Op: op, Message: err.Error()}
}
