// Package provisioning runs the folder + record-update sequence for a newly
// created record.
package provisioning

import (
	"context"
	"errors"
	"strconv"

	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/internal/storage"
	"github.com/studentdocs/profile-service/pkg/logger"
	"github.com/studentdocs/profile-service/pkg/metrics"
)

// Stage names a step of a provisioning run.
type Stage string

const (
	StageAccepted             Stage = "accepted"
	StageFolderRequested      Stage = "folder_requested"
	StageFolderCreated        Stage = "folder_created"
	StagePermissionRequested  Stage = "permission_requested"
	StagePermissionGranted    Stage = "permission_granted"
	StageLinksComputed        Stage = "links_computed"
	StageRecordPatchRequested Stage = "record_patch_requested"
	StageCompleted            Stage = "completed"

	// failure stages
	StageFolderCreation  Stage = "folder_creation"
	StagePermissionGrant Stage = "permission_grant"
	StageRecordUpdate    Stage = "record_update"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	defaultDisplayName = "Unknown"
)

var errInvalidRecordID = errors.New("record id must be positive")

// Patcher writes fields back to a record.
type Patcher interface {
	Patch(ctx context.Context, tableID string, recordID int64, fields map[string]string) error
}

// Fields names the record fields read and written by a run.
type Fields struct {
	DisplayName string
	FolderLink  string
	ProfileLink string
}

type Config struct {
	ParentFolderID string
	// ProfileBaseURL is this service's external address, without trailing slash.
	ProfileBaseURL string
	Fields         Fields
}

// Outcome is the terminal state of a run. On error Stage is one of the
// failure stages and Err holds the cause.
type Outcome struct {
	Status      string
	Stage       Stage
	FolderName  string
	FolderLink  string
	ProfileLink string
	Err         error
}

type Orchestrator struct {
	folders storage.Provisioner
	records Patcher
	cfg     Config
}

func NewOrchestrator(folders storage.Provisioner, patcher Patcher, cfg Config) *Orchestrator {
	if cfg.Fields.DisplayName == "" {
		cfg.Fields.DisplayName = "Full Name"
	}
	if cfg.Fields.FolderLink == "" {
		cfg.Fields.FolderLink = "Google Drive Link"
	}
	if cfg.Fields.ProfileLink == "" {
		cfg.Fields.ProfileLink = "Profile"
	}
	return &Orchestrator{folders: folders, records: patcher, cfg: cfg}
}

// ProfileLink returns the public render URL for a record.
func ProfileLink(baseURL string, recordID int64) string {
	return baseURL + "/student-details/" + strconv.FormatInt(recordID, 10)
}

// Run provisions a folder for rec, makes it publicly readable and writes both
// links back to the same record. Steps run strictly in order and a failure
// stops the run; nothing already created is rolled back.
func (o *Orchestrator) Run(ctx context.Context, rec records.Record, recordID int64, tableID string) Outcome {
	log := logger.With("record_id", recordID, "table_id", tableID)
	stage := StageAccepted
	advance := func(s Stage) {
		stage = s
		log.Debugf("stage %s", s)
	}
	fail := func(s Stage, err error) Outcome {
		log.With("stage", s).Errorf("provisioning failed after %s: %v", stage, err)
		metrics.ProvisioningOutcomes.WithLabelValues(string(s)).Inc()
		return Outcome{Status: StatusError, Stage: s, Err: err}
	}

	if recordID <= 0 {
		return fail(StageFolderCreation, errInvalidRecordID)
	}

	name := storage.FolderName(recordID, rec.Text(o.cfg.Fields.DisplayName, defaultDisplayName))
	advance(StageFolderRequested)
	folder, err := o.folders.CreateFolder(ctx, name, o.cfg.ParentFolderID)
	if err != nil {
		return fail(StageFolderCreation, err)
	}
	advance(StageFolderCreated)
	log.Infof("created folder %q (%s)", name, folder.ID)

	advance(StagePermissionRequested)
	if err := o.folders.GrantPublicRead(ctx, folder.ID); err != nil {
		return fail(StagePermissionGrant, err)
	}
	advance(StagePermissionGranted)

	profile := ProfileLink(o.cfg.ProfileBaseURL, recordID)
	update := map[string]string{
		o.cfg.Fields.FolderLink:  folder.Link,
		o.cfg.Fields.ProfileLink: profile,
	}
	advance(StageLinksComputed)

	log.Infof("updating record: %s=%s %s=%s", o.cfg.Fields.FolderLink, folder.Link, o.cfg.Fields.ProfileLink, profile)
	advance(StageRecordPatchRequested)
	if err := o.records.Patch(ctx, tableID, recordID, update); err != nil {
		return fail(StageRecordUpdate, err)
	}

	advance(StageCompleted)
	metrics.ProvisioningOutcomes.WithLabelValues(string(StageCompleted)).Inc()
	log.Infof("provisioned folder %q", name)
	return Outcome{
		Status:      StatusSuccess,
		Stage:       StageCompleted,
		FolderName:  name,
		FolderLink:  folder.Link,
		ProfileLink: profile,
	}
}
