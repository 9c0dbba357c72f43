package input

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kris-hansen/analyst/utils/profile"
)

// Kind separates uploads the Analyst can compute on from reference documents
type Kind string

const (
	KindTabular Kind = "tabular"
	KindText    Kind = "text"
)

// Accepted file extensions
var (
	TabularExtensions = []string{".csv", ".xlsx"}

	DocumentExtensions = []string{".docx", ".pdf"}

	PlotExtensions = []string{".png", ".jpg", ".jpeg", ".html"}
)

// DetectKind maps a file name to its kind and profile file type using the
// lowercase extension. Unknown extensions wrap ErrUnsupportedType.
func DetectKind(name string) (Kind, string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".xlsx":
		return KindTabular, profile.FileTypeTabular, nil
	case ".xls":
		return "", "", fmt.Errorf("file '%s' is a legacy Excel 97-2003 workbook, save it as .xlsx or .csv: %w", name, ErrUnsupportedType)
	case ".docx":
		return KindText, profile.FileTypeDocx, nil
	case ".pdf":
		return KindText, profile.FileTypePDF, nil
	}
	if ext == "" {
		return "", "", fmt.Errorf("file '%s' has no extension: %w", name, ErrUnsupportedType)
	}
	return "", "", fmt.Errorf("file type %s for file '%s': %w", ext, name, ErrUnsupportedType)
}

// IsPlotFile reports whether name can be uploaded as a plot for interpretation
func IsPlotFile(name string) bool {
	return hasExtension(name, PlotExtensions)
}

// IsImageFile reports whether name is a raster plot
func IsImageFile(name string) bool {
	return IsPlotFile(name) && !strings.EqualFold(filepath.Ext(name), ".html")
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateName rejects empty or directory-only upload names
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, "\\") {
		return fmt.Errorf("file name '%s' is a directory", name)
	}
	return nil
}
