package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// Upload limits.
const (
	DefaultMaxUploadBytes = 10 << 20
	MaxPromptRunes        = 500
	multipartOverhead     = 1 << 20
)

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// searchForm is the parsed multipart search request.
type searchForm struct {
	image    domain.Image
	prompt   string
	fallback *domain.ImageSignals
}

func validationError(msg string) error {
	return domain.NewError(domain.ErrValidation, msg, nil)
}

// parseSearchForm reads the "image" file, the optional "prompt" and the optional
// "fallbackSignals" JSON field.
func parseSearchForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (searchForm, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return searchForm{}, validationError("expected multipart/form-data")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return searchForm{}, validationError(fmt.Sprintf("image exceeds %d bytes", maxBytes))
		}
		return searchForm{}, validationError("malformed multipart body")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return searchForm{}, validationError("missing image file in multipart body")
	}
	defer file.Close()

	img, err := readImage(file, header, maxBytes)
	if err != nil {
		return searchForm{}, err
	}

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if utf8.RuneCountInString(prompt) > MaxPromptRunes {
		return searchForm{}, validationError(fmt.Sprintf("prompt must be at most %d characters", MaxPromptRunes))
	}

	form := searchForm{image: img, prompt: prompt}

	if raw := r.FormValue("fallbackSignals"); raw != "" {
		var s domain.ImageSignals
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return searchForm{}, validationError("fallbackSignals must be valid ImageSignals JSON")
		}
		form.fallback = &s
	}

	return form, nil
}

func readImage(file multipart.File, header *multipart.FileHeader, maxBytes int64) (domain.Image, error) {
	declared := header.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" {
		if _, ok := allowedMimeTypes[declared]; !ok {
			return domain.Image{}, validationError(
				fmt.Sprintf("invalid file type %s: allowed types are image/jpeg, image/png, image/webp", declared))
		}
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return domain.Image{}, validationError("could not read image")
	}
	if int64(len(data)) > maxBytes {
		return domain.Image{}, validationError(fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}

	detected := sniffImage(data)
	if detected == "" {
		return domain.Image{}, validationError("invalid image content: magic bytes do not match a supported format")
	}
	return domain.Image{Data: data, MimeType: detected}, nil
}

// sniffImage returns the MIME type matching the leading magic bytes, or "" when unsupported.
func sniffImage(b []byte) string {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return "image/jpeg"
	case len(b) >= 4 && bytes.Equal(b[:4], []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return ""
	}
}
