package web

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/JonMunkholm/supabase-csv/internal/core"
	"github.com/JonMunkholm/supabase-csv/internal/logging"
	"github.com/google/uuid"
)

const (
	defaultUploadName = "upload.csv"

	// multipart parts beyond this are spooled to disk
	multipartMemory = 8 << 20
)

// handleConvert converts one export. The file is the raw request body, or
// the "file" field of a multipart form. The converted CSV is buffered so a
// failed conversion still gets a JSON error instead of a truncated file.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)

	src, name, err := uploadedFile(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer src.Close()

	if err := s.limiter.Acquire(r.Context()); err != nil {
		status := statusFor(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "5")
		}
		s.respondError(w, r, err, status)
		return
	}
	defer s.limiter.Release()

	conversionID := uuid.NewString()
	log := logging.WithFields(r.Context(), "conversion_id", conversionID, "file", name)

	var out bytes.Buffer
	res, err := s.transcoder.Transcode(src, &out)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	log.Info("upload converted",
		"rows", res.Rows,
		"delimiter", string(res.Delimiter),
		"array_values", res.ArrayValues,
		"unbalanced_arrays", res.UnbalancedArrays,
		"bytes", res.BytesRead,
	)

	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": core.OutputPath(name),
	}))
	h.Set("X-Conversion-ID", conversionID)
	h.Set("X-Row-Count", strconv.Itoa(res.Rows))
	h.Set("X-Delimiter", string(res.Delimiter))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Bytes()); err != nil {
		log.Warn("write response", "error", err)
	}
}

// uploadedFile returns the upload body and its base file name.
func uploadedFile(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, uploadName(r.URL.Query().Get("filename")), nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, "", errNoFile
		}
		return nil, "", err
	}

	name := header.Filename
	if q := r.URL.Query().Get("filename"); q != "" {
		name = q
	}
	return file, uploadName(name), nil
}

func uploadName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return defaultUploadName
	}
	return name
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status      string             `json:"status"`
	Conversions core.LimiterStatus `json:"conversions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Conversions: s.limiter.Status(),
	})
}
