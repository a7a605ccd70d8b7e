package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

type assetResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

func toAssetResponse(a *models.UploadedAsset) assetResponse {
	return assetResponse{URL: a.URL, PublicID: a.RemoteID}
}

// UploadImage handles POST /upload with a single file in field "image".
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	assets, ok := h.storeFiles(w, r, "image", upload.ImagePolicy())
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, "File uploaded successfully", toAssetResponse(assets[0]))
}

// UploadImages handles POST /uploads with up to five files in field "images".
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	assets, ok := h.storeFiles(w, r, "images", upload.GeneralPolicy())
	if !ok {
		return
	}

	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	writeJSON(w, http.StatusOK, "Files uploaded successfully", out)
}

func (h *Handler) storeFiles(w http.ResponseWriter, r *http.Request, field string, p upload.Policy) ([]*models.UploadedAsset, bool) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, closeFiles, err := formFiles(r.MultipartForm, field)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	defer closeFiles()

	if len(files) == 0 {
		h.writeError(w, r, badRequest(msgNoFile))
		return nil, false
	}

	assets, err := h.uploads.Upload(r.Context(), p, files...)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return assets, true
}

// DeleteFile handles DELETE /delete/*. The remote id is the rest of the path
// and may contain slashes. A missing object is reported as deleted.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	remoteID := strings.Trim(chi.URLParam(r, "*"), "/")
	if remoteID == "" {
		h.writeError(w, r, badRequest("File id is required"))
		return
	}

	if _, err := h.uploads.Delete(r.Context(), remoteID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File deleted successfully", nil)
}
