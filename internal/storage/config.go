package storage

// Backend names accepted by STORAGE_BACKEND.
const (
	BackendDrive = "drive"
	BackendMinIO = "minio"
	BackendGCS   = "gcs"
)

// DriveConfig holds Google Drive service-account settings.
type DriveConfig struct {
	CredentialsFile string
	// ProxyURL, when set, routes Drive API and OAuth token traffic through an HTTP proxy.
	ProxyURL string
}

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL is the externally reachable base used for shareable links.
	// Defaults to http(s)://<Endpoint>.
	PublicURL string
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
}
