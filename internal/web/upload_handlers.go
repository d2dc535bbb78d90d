package web

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/report"
	"github.com/evcraddock/propdesk/internal/validate"
)

// maxUploadBytes bounds a single uploaded file.
const maxUploadBytes = 20 << 20

var allowedUploadTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"application/pdf": ".pdf",
}

type presignRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
}

func uploadExt(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := allowedUploadTypes[ct]
	if !ok {
		return "", validate.Field("contentType", "unsupported file type "+ct)
	}
	return ext, nil
}

// handleDirectUpload handles POST /uploads/{provider}/direct. Every provider
// stores into the local file store; the name is kept for client compatibility.
func (s *Server) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, r, validate.Field("file", "invalid multipart upload"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, validate.Field("file", "file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxUploadBytes {
		writeError(w, r, validate.Field("file", "file is too large"))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	ext, err := uploadExt(mimeType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := report.NewKey("uploads", ext)
	n, err := s.files.Save(key, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, report.Uploaded{
		URL:      report.URL(key),
		FileKey:  key,
		MimeType: mimeType,
		Size:     n,
		Provider: mux.Vars(r)["provider"],
	}, http.StatusCreated)
}

// handlePresign handles POST /uploads/presign and returns a one-shot PUT URL.
func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	ext, err := uploadExt(req.ContentType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := report.NewKey("uploads", ext)
	token, expires, err := s.uploads.Issue(actorOf(r).ID, key, req.ContentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, report.Presigned{
		UploadURL: strings.TrimRight(s.baseURL, "/") + "/uploads/put/" + token,
		FileKey:   key,
		FileURL:   report.URL(key),
		ExpiresAt: expires,
	}, http.StatusOK)
}

// handlePresignedPut handles PUT /uploads/put/{token}. The token is the only
// credential and works once.
func (s *Server) handlePresignedPut(w http.ResponseWriter, r *http.Request) {
	key, mimeType, err := s.uploads.Consume(mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.files.Save(key, http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, validate.Field("file", "file is too large"))
			return
		}
		writeError(w, r, err)
		return
	}
	apiJSON(w, report.Uploaded{URL: report.URL(key), FileKey: key, MimeType: mimeType, Size: n}, http.StatusCreated)
}

// handleFile handles GET /files/{key...}.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, report.FilesPrefix)
	f, err := s.files.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, report.ErrInvalidKey) {
			apiError(w, "file not found", http.StatusNotFound)
			return
		}
		writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.ServeContent(w, r, path.Base(key), info.ModTime(), io.ReadSeeker(f))
}
