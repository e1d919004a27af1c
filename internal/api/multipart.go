package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// Multipart is a multipart/form-data body with ordered fields and an optional file.
type Multipart struct {
	fields [][2]string
	file   *formFile
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

// NewMultipart returns an empty form.
func NewMultipart() *Multipart {
	return &Multipart{}
}

// Field appends a text field.
func (m *Multipart) Field(name, value string) *Multipart {
	m.fields = append(m.fields, [2]string{name, value})
	return m
}

// File attaches a file part.
func (m *Multipart) File(field, filename, contentType string, data []byte) *Multipart {
	m.file = &formFile{field: field, name: filename, contentType: contentType, data: data}
	return m
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range m.fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if m.file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, m.file.field, m.file.name))
		h.Set("Content-Type", m.file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(m.file.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
