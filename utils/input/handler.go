// Package input ingests uploaded files and web pages into tables and text
// documents, and prepares plot uploads for interpretation.
package input

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/profile"
	"github.com/kris-hansen/analyst/utils/scraper"
)

// ErrUnsupportedType is returned for files whose extension has no reader
var ErrUnsupportedType = errors.New("unsupported file type")

// Upload is a named blob received from the user
type Upload struct {
	Name string
	Data []byte
}

// File is an ingested upload. Tabular files carry Table, documents carry Text.
type File struct {
	Name     string           `json:"name"`
	Kind     Kind             `json:"kind"`
	FileType string           `json:"file_type"`
	Size     int              `json:"size"`
	Source   string           `json:"source,omitempty"` // URL for scraped pages
	Table    *profile.Table   `json:"table,omitempty"`
	Text     string           `json:"text,omitempty"`
	Profile  *profile.Profile `json:"profile"`
}

// ProfileSource adapts the file for profile rendering
func (f *File) ProfileSource() profile.Source {
	return profile.Source{Name: f.Name, Profile: f.Profile, Text: f.Text}
}

// FileError records why one file of a batch could not be used
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Unsupported reports whether the failure was only an unknown file type
func (e *FileError) Unsupported() bool {
	return errors.Is(e.Err, ErrUnsupportedType)
}

// Batch is the outcome of ingesting several files. Files keeps input order
// with failed entries left out.
type Batch struct {
	Files  []*File
	Errors []*FileError
}

// Handler ingests uploads and URLs
type Handler struct {
	maxSize     int64
	concurrency int
	scraper     *scraper.Scraper
}

// NewHandler creates a handler that rejects uploads larger than maxSize bytes
func NewHandler(maxSize int64) *Handler {
	if maxSize <= 0 {
		maxSize = fileutil.MaxFileSize
	}
	return &Handler{
		maxSize:     maxSize,
		concurrency: runtime.NumCPU(),
		scraper:     scraper.NewScraper(),
	}
}

// SetScraper replaces the scraper used for URLs
func (h *Handler) SetScraper(s *scraper.Scraper) {
	h.scraper = s
}

// SetConcurrency bounds how many files are processed at once
func (h *Handler) SetConcurrency(n int) {
	if n > 0 {
		h.concurrency = n
	}
}

// MaxSize returns the per-upload size limit in bytes
func (h *Handler) MaxSize() int64 {
	return h.maxSize
}

// ProcessUpload dispatches on the file extension and profiles the result
func (h *Handler) ProcessUpload(up Upload) (*File, error) {
	if err := ValidateName(up.Name); err != nil {
		return nil, err
	}
	name := filepath.Base(up.Name)
	if err := fileutil.CheckSize(name, int64(len(up.Data)), h.maxSize); err != nil {
		return nil, err
	}

	kind, fileType, err := DetectKind(name)
	if err != nil {
		return nil, err
	}

	file := &File{Name: name, Kind: kind, FileType: fileType, Size: len(up.Data)}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		file.Table, err = ReadCSV(name, up.Data)
	case ".xlsx":
		file.Table, err = ReadExcel(name, up.Data)
	case ".docx":
		file.Text, err = ReadDocx(name, up.Data)
	case ".pdf":
		file.Text, err = ReadPDF(name, up.Data)
	}
	if err != nil {
		return nil, err
	}

	if file.Table != nil {
		file.Profile = profile.Tabular(file.Table)
	} else {
		file.Profile = profile.Text(fileType, file.Text)
	}
	return file, nil
}

// ProcessURL scrapes a web page into a text document
func (h *Handler) ProcessURL(ctx context.Context, rawURL string) (*File, error) {
	page, err := h.scraper.Scrape(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	text := page.Text()
	return &File{
		Name:     scraper.DocumentName(rawURL),
		Kind:     KindText,
		FileType: profile.FileTypeWeb,
		Size:     len(text),
		Source:   rawURL,
		Text:     text,
		Profile:  profile.Text(profile.FileTypeWeb, text),
	}, nil
}

// ProcessAll ingests uploads then URLs concurrently. One bad file never fails
// the batch; its error is reported in Batch.Errors instead.
func (h *Handler) ProcessAll(ctx context.Context, uploads []Upload, urls []string) *Batch {
	total := len(uploads) + len(urls)
	files := make([]*File, total)
	errs := make([]*FileError, total)

	var g errgroup.Group
	g.SetLimit(h.concurrency)

	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			f, err := h.ProcessUpload(up)
			if err != nil {
				errs[i] = &FileError{Name: up.Name, Err: err}
				return nil
			}
			files[i] = f
			return nil
		})
	}
	for j, u := range urls {
		i, u := len(uploads)+j, u
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &FileError{Name: u, Err: err}
				return nil
			}
			f, err := h.ProcessURL(ctx, u)
			if err != nil {
				errs[i] = &FileError{Name: u, Err: err}
				return nil
			}
			files[i] = f
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{}
	for i := 0; i < total; i++ {
		if files[i] != nil {
			batch.Files = append(batch.Files, files[i])
		}
		if errs[i] != nil {
			if errs[i].Unsupported() {
				log.Warn().Str("file", errs[i].Name).Msg("skipping unsupported file type")
			} else {
				log.Error().Err(errs[i].Err).Str("file", errs[i].Name).Msg("file processing failed")
			}
			batch.Errors = append(batch.Errors, errs[i])
		}
	}
	return batch
}
