// Package export packages a project as downloadable artifacts: a zip of
// the files a coding assistant consumes, or a PDF of the PRD.
package export

import (
	"errors"
)

// Format represents the export output format
type Format string

const (
	FormatZip Format = "zip"
	FormatPDF Format = "pdf"
)

// Artifact paths inside the bundle.
const (
	PathPRD     = "PRD.md"
	PathRules   = ".cursor/rules/instructions.mdc"
	PathEpics   = "epics.json"
	PathTickets = "tickets.json"
)

// File is one artifact of a bundle.
type File struct {
	Path    string
	Content []byte
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)
