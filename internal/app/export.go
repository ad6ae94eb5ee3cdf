package app

import (
	"context"
	"net/http"
	"strconv"

	"specstudio/internal/archive"
	"specstudio/internal/export"
	"specstudio/internal/history"
	"specstudio/internal/project"
	"specstudio/internal/share"
)

// handleExport returns the artifact bundle as a zip download, or uploads
// it and returns a download link when publish=1.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readForm(w, r)
	if !ok {
		return
	}
	publish := r.URL.Query().Get("publish") == "1"
	if publish && s.archive == nil {
		s.writeMappedError(w, archive.ErrDisabled)
		return
	}

	result, err := s.exporter.Export(r.Context(), export.Request{Format: export.FormatZip, Snapshot: snap})
	if err != nil {
		s.logger.Error("zip export failed", "request_id", requestID(r.Context()), "error", err)
		s.writeMappedError(w, err)
		return
	}

	if commit, ok := s.recordHistory(r.Context(), snap); ok {
		w.Header().Set("X-History-Commit", commit.Hash)
	}

	if publish {
		published, err := s.archive.Publish(r.Context(), result.Data, result.Filename)
		if err != nil {
			s.logger.Error("publish export failed", "request_id", requestID(r.Context()), "error", err)
			s.writeMappedError(w, err)
			return
		}
		s.logger.Info("export published", "key", published.Key, "size", published.Size)
		writeJSON(w, http.StatusCreated, published)
		return
	}

	writeAttachment(w, result)
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readForm(w, r)
	if !ok {
		return
	}
	result, err := s.exporter.Export(r.Context(), export.Request{Format: export.FormatPDF, Snapshot: snap})
	if err != nil {
		s.logger.Error("pdf export failed", "request_id", requestID(r.Context()), "error", err)
		s.writeMappedError(w, err)
		return
	}
	writeAttachment(w, result)
}

// recordHistory commits the exported artifacts. Failures are logged and
// never fail the export itself.
func (s *HTTPServer) recordHistory(ctx context.Context, snap project.Snapshot) (history.Commit, bool) {
	if s.history == nil {
		return history.Commit{}, false
	}
	files, err := export.Artifacts(snap)
	if err != nil {
		s.logger.Warn("history artifacts failed", "request_id", requestID(ctx), "error", err)
		return history.Commit{}, false
	}
	message := "Export"
	if key, err := s.secrets.Key(); err == nil {
		if token, err := share.Encode(key, snap); err == nil {
			message = "Export " + token.ShortID
		}
	}
	commit, err := s.history.Record(files, s.cfg.History.Author, message)
	if err != nil {
		s.logger.Warn("history record failed", "request_id", requestID(ctx), "error", err)
		return history.Commit{}, false
	}
	s.logger.Info("export recorded", "commit", commit.Hash, "unchanged", commit.Unchanged)
	return commit, true
}

func writeAttachment(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
