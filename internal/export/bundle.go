package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"

	"specstudio/internal/project"
)

// Artifacts returns the four bundle files for snap in a fixed order.
func Artifacts(snap project.Snapshot) ([]File, error) {
	snap = snap.Normalize()
	epics, err := json.MarshalIndent(snap.Scenes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal epics: %w", err)
	}
	tickets, err := json.MarshalIndent(snap.Shots, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tickets: %w", err)
	}
	return []File{
		{Path: PathPRD, Content: []byte(snap.Script)},
		{Path: PathRules, Content: []byte(snap.Rules)},
		{Path: PathEpics, Content: append(epics, '\n')},
		{Path: PathTickets, Content: append(tickets, '\n')},
	}, nil
}

// Bundle zips the artifacts of snap. Entries carry the export time as
// their modification time.
func Bundle(snap project.Snapshot, now time.Time) (*Result, error) {
	files, err := Artifacts(snap)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Path,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Path, err)
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: fmt.Sprintf("artifacts_%d.zip", now.Unix()),
		MimeType: "application/zip",
	}, nil
}
