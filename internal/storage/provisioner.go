package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrFolderProvisioning = errors.New("folder provisioning failed")
	ErrPermissionGrant    = errors.New("permission grant failed")
)

// UpstreamError reports a storage service failure. Op is ErrFolderProvisioning
// or ErrPermissionGrant; Status is the upstream HTTP status when known.
type UpstreamError struct {
	Op      error
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%v: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Op }

// Folder is a provisioned storage container.
type Folder struct {
	ID   string
	Link string
}

// Provisioner creates per-record folders in external storage.
type Provisioner interface {
	CreateFolder(ctx context.Context, name, parentID string) (*Folder, error)
	GrantPublicRead(ctx context.Context, folderID string) error
}

// FolderName builds "{record_id} - {display_name}". Names are not unique;
// repeated events for one record create sibling folders with the same name.
func FolderName(recordID int64, displayName string) string {
	return strconv.FormatInt(recordID, 10) + " - " + displayName
}

// Unavailable is a Provisioner that fails every call with the error that
// prevented the real backend from being built.
type Unavailable struct {
	Err error
}

func (u Unavailable) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	return nil, &UpstreamError{Op: ErrFolderProvisioning, Message: "storage backend unavailable: " + u.Err.Error()}
}

func (u Unavailable) GrantPublicRead(ctx context.Context, folderID string) error {
	return &UpstreamError{Op: ErrPermissionGrant, Message: "storage backend unavailable: " + u.Err.Error()}
}
