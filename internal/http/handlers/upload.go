package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"spritestudio/internal/domain"
)

const multipartMemory = 8 << 20

var errUploadTooLarge = errors.New("upload exceeds the size limit")

func (a *App) maxUpload() int64 {
	if a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return 10 << 20
}

// parseForm accepts multipart or urlencoded bodies within the upload limit.
func (a *App) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload()+multipartMemory)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errUploadTooLarge
	}
	return err
}

// formImage reads the uploaded file under field. A missing file yields nil.
func (a *App) formImage(r *http.Request, field string) (*domain.InputImage, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, a.maxUpload()+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.maxUpload() {
		return nil, errUploadTooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, domain.InvalidInput("upload image", "The uploaded file is not an image.")
	}
	return &domain.InputImage{Filename: header.Filename, MIMEType: mimeType, Data: data}, nil
}

// readImageForm parses the form and returns the image under field.
func (a *App) readImageForm(w http.ResponseWriter, r *http.Request, field string) (*domain.InputImage, bool) {
	if err := a.parseForm(w, r); err != nil {
		if errors.Is(err, errUploadTooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "invalid_input", "The uploaded image is too large.")
			return nil, false
		}
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid form payload")
		return nil, false
	}
	img, err := a.formImage(r, field)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "invalid_input", "The uploaded image is too large.")
			return nil, false
		}
		a.fail(w, r, asInvalid(err))
		return nil, false
	}
	return img, true
}

func asInvalid(err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	return domain.NewError(domain.KindInvalidInput, "upload image", "could not read the uploaded image", err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}
