package models

import "time"

// User is a persisted account. Username and Email are stored normalized
// (trimmed, lower-cased) and are unique. PasswordHash is a bcrypt hash.
// ProfilePhotoID and ProfilePhotoURL are both empty when no photo is linked.
type User struct {
	ID              string
	Username        string
	Email           string
	FullName        string
	Bio             string
	PasswordHash    string
	ProfilePhotoID  string
	ProfilePhotoURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u *User) HasProfilePhoto() bool {
	return u.ProfilePhotoID != ""
}

// SetProfilePhoto links asset to u.
func (u *User) SetProfilePhoto(asset *UploadedAsset) {
	u.ProfilePhotoID = asset.RemoteID
	u.ProfilePhotoURL = asset.URL
}

// ClearProfilePhoto drops the reference and returns the remote id it held.
func (u *User) ClearProfilePhoto() string {
	old := u.ProfilePhotoID
	u.ProfilePhotoID = ""
	u.ProfilePhotoURL = ""
	return old
}
