// Package models defines the server-side data models: accounts persisted in
// Postgres and the assets kept in remote object storage.
package models

// Folder groups remote objects by purpose.
type Folder string

const (
	FolderProfile Folder = "profile_photos"
	FolderGeneral Folder = "uploads"
)

// UploadedAsset is an object that was transferred to remote storage. It is
// created only after a successful transfer and lives independently of any
// record until a record references RemoteID.
type UploadedAsset struct {
	// RemoteID is the provider handle, also exposed to clients as publicId.
	RemoteID string
	URL      string
	Folder   Folder
	// OwnerRecordID is empty until the asset is linked to a record.
	OwnerRecordID string
}
