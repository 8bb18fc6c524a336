package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/metrics"
	"github.com/dmitrijs2005/ecomarket/internal/server/storage"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

type uploadResponse struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type ImageHandler struct {
	store      ImageStore
	policy     storage.UploadPolicy
	publicPath string
	metrics    metrics.Recorder
	logger     logging.Logger
}

func NewImageHandler(store ImageStore, policy storage.UploadPolicy, publicPath string, rec metrics.Recorder, logger logging.Logger) *ImageHandler {
	if policy.MaxSize <= 0 {
		policy = storage.DefaultPolicy
	}
	return &ImageHandler{
		store:      store,
		policy:     policy,
		publicPath: strings.TrimRight(publicPath, "/"),
		metrics:    rec,
		logger:     logger,
	}
}

// Upload handles POST /images/upload with the image in form field "file".
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.policy.MaxSize + multipartOverhead
	if r.ContentLength > limit {
		h.metrics.RecordUpload(metrics.OutcomeRejected, r.ContentLength)
		writeError(w, common.ErrPayloadTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = common.ErrBadRequest
		}
		h.metrics.RecordUpload(metrics.OutcomeRejected, 0)
		writeError(w, err)
		return
	}
	defer file.Close()

	if err := h.policy.Check(header.Size, header.Header.Get("Content-Type")); err != nil {
		h.metrics.RecordUpload(metrics.OutcomeRejected, header.Size)
		writeError(w, err)
		return
	}

	name, err := h.store.Store(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Error(r.Context(), "image store failed", "error", err)
		h.metrics.RecordUpload(metrics.OutcomeError, header.Size)
		writeError(w, err)
		return
	}

	h.metrics.RecordUpload(metrics.OutcomeSuccess, header.Size)
	writeJSON(w, http.StatusOK, uploadResponse{Filename: name, URL: h.publicPath + "/" + name})
}

// Serve handles GET /images/{filename}.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, common.ErrBadRequest)
		return
	}

	f, mediaType, err := h.store.Open(name)
	if err != nil {
		if errors.Is(err, common.ErrAccessDenied) {
			h.logger.Warn(r.Context(), "image path outside storage root", "filename", name)
		}
		writeError(w, err)
		return
	}
	defer f.Close()

	modTime := time.Time{}
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	base := filepath.Base(f.Name())
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", base))
	http.ServeContent(w, r, base, modTime, f)
}
