package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

// Attachment is a named file that goes into the archive or the email.
type Attachment struct {
	Name string
	Data []byte
}

// WriteZIP packs the files into a deflated zip archive. A name already in
// the archive gets the first free "-2", "-3" suffix.
func WriteZIP(files []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]bool, len(files))
	for _, f := range files {
		name := f.Name
		ext := path.Ext(name)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(f.Name, ext), n, ext)
		}
		used[name] = true

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("adding %s: %w", name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// AttachmentName builds the archive path of a receipt's original file, e.g.
// "bonnen/2026-02-01_albert-heijn_1a2b3c4d.jpg".
func AttachmentName(date time.Time, store, id, ext string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("bonnen/%s_%s_%s.%s", date.Format("2006-01-02"), slug(store), short, ext)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "onbekend"
	}
	return out
}

// Bundle holds every generated document for one period.
type Bundle struct {
	Report Report
	XLSX   []byte
	PDF    []byte
	ZIP    []byte
}

// Attachments lists the documents as email attachments.
func (b Bundle) Attachments() []Attachment {
	return []Attachment{
		{Name: b.Report.Period.Filename("xlsx"), Data: b.XLSX},
		{Name: b.Report.Period.Filename("pdf"), Data: b.PDF},
		{Name: b.Report.Period.Filename("zip"), Data: b.ZIP},
	}
}

// BuildBundle renders the spreadsheet and PDF and archives them together with
// the original receipt files.
func BuildBundle(r Report, originals []Attachment) (Bundle, error) {
	xlsx, err := WriteXLSX(r)
	if err != nil {
		return Bundle{}, err
	}
	pdf, err := WritePDF(r)
	if err != nil {
		return Bundle{}, err
	}

	files := make([]Attachment, 0, len(originals)+2)
	files = append(files,
		Attachment{Name: r.Period.Filename("xlsx"), Data: xlsx},
		Attachment{Name: r.Period.Filename("pdf"), Data: pdf},
	)
	files = append(files, originals...)

	archive, err := WriteZIP(files)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Report: r, XLSX: xlsx, PDF: pdf, ZIP: archive}, nil
}
