// Package upload implements the upload lifecycle: validation of untrusted
// files, transfer to remote storage, linking the stored asset to a record and
// compensating deletes when a later step fails.
package upload

import "github.com/dmitrijs2005/mediakeeper/internal/server/models"

// Policy describes what a route accepts and where accepted files go.
type Policy struct {
	Name             string
	Folder           models.Folder
	AllowedMimeTypes map[string]bool
	MaxSizeBytes     int64
	MaxFileCount     int
	AllowAnimated    bool
	// ExtensionMap lists the filename extensions accepted for each MIME type.
	ExtensionMap   map[string][]string
	Transformation string
}

const megabyte = 1024 * 1024

// animatedTypes are MIME types that can carry animation.
var animatedTypes = map[string]bool{"image/gif": true}

func imageExtensions() map[string][]string {
	return map[string][]string{
		"image/jpeg": {"jpg", "jpeg"},
		"image/jpg":  {"jpg", "jpeg"},
		"image/png":  {"png"},
		"image/webp": {"webp"},
		"image/gif":  {"gif"},
	}
}

// ProfilePolicy accepts a single still image of up to 2MB for profile photos.
func ProfilePolicy() Policy {
	return Policy{
		Name:   "profile",
		Folder: models.FolderProfile,
		AllowedMimeTypes: map[string]bool{
			"image/jpeg": true, "image/jpg": true, "image/png": true, "image/webp": true,
		},
		MaxSizeBytes:   2 * megabyte,
		MaxFileCount:   1,
		ExtensionMap:   imageExtensions(),
		Transformation: "c_fill,g_face,h_300,w_300,q_auto:good,f_webp",
	}
}

// GeneralPolicy accepts up to five images of up to 5MB each, animated GIFs
// included.
func GeneralPolicy() Policy {
	return Policy{
		Name:   "general",
		Folder: models.FolderGeneral,
		AllowedMimeTypes: map[string]bool{
			"image/jpeg": true, "image/jpg": true, "image/png": true, "image/webp": true, "image/gif": true,
		},
		MaxSizeBytes:   5 * megabyte,
		MaxFileCount:   5,
		AllowAnimated:  true,
		ExtensionMap:   imageExtensions(),
		Transformation: "c_limit,h_1000,w_1000,q_auto:good,f_auto",
	}
}

// ImagePolicy is GeneralPolicy restricted to one file per request.
func ImagePolicy() Policy {
	p := GeneralPolicy()
	p.Name = "image"
	p.MaxFileCount = 1
	return p
}
