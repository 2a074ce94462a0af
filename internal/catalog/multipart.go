package catalog

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"strconv"

	"github.com/ecofinds/ecofinds-client/internal/gateway"
)

// ProductForm carries the fields of a listing create or update. Zero-value
// text fields are omitted so updates stay partial; Price is included when
// positive. ExistingImages lists the image URLs to keep on update.
type ProductForm struct {
	Title          string
	Description    string
	Category       string
	Price          float64
	Images         []ImageFile
	ExistingImages []string
}

// ImageFile is one image upload: a filename and its raw content.
type ImageFile struct {
	Name    string
	Content []byte
}

// encodeProductForm renders the form as multipart/form-data, matching the
// field names the backend reads: title, description, category, price,
// images (repeated file part), existingImages (JSON array).
func encodeProductForm(form ProductForm) (*gateway.FormBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":       form.Title,
		"description": form.Description,
		"category":    form.Category,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if form.Price > 0 {
		if err := w.WriteField("price", strconv.FormatFloat(form.Price, 'f', -1, 64)); err != nil {
			return nil, err
		}
	}
	if form.ExistingImages != nil {
		keep, err := json.Marshal(form.ExistingImages)
		if err != nil {
			return nil, err
		}
		if err := w.WriteField("existingImages", string(keep)); err != nil {
			return nil, err
		}
	}
	for _, img := range form.Images {
		part, err := w.CreateFormFile("images", img.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img.Content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return &gateway.FormBody{ContentType: w.FormDataContentType(), Payload: buf.Bytes()}, nil
}
