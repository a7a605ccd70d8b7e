package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

// maxMemory is how much of a multipart body is buffered before spilling to
// temporary files.
const maxMemory = 8 << 20

// parseMultipart reads the request body as a multipart form capped at
// h.maxRequestBytes.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return badRequest(msgFileTooLarge)
		}
		return badRequest(msgBadForm)
	}
	return nil
}

// formFiles opens the files sent under field. Files under any other field
// are rejected. The returned closer releases every opened file.
func formFiles(form *multipart.Form, field string) ([]upload.File, func(), error) {
	for name := range form.File {
		if name != field {
			return nil, func() {}, badRequest(msgUnexpectedFile)
		}
	}

	headers := form.File[field]
	files := make([]upload.File, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, badRequest(msgBadForm)
		}
		opened = append(opened, f)
		files = append(files, upload.File{
			Request: upload.Request{
				MimeType:  fh.Header.Get("Content-Type"),
				Filename:  fh.Filename,
				Size:      fh.Size,
				FieldName: field,
				Count:     len(headers),
			},
			Body: f,
		})
	}
	return files, closeAll, nil
}
