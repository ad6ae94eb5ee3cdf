package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"specstudio/internal/share"
)

type shareResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Payload string `json:"payload"`
	Sig     string `json:"sig"`
}

// handleShare encodes the submitted project into a signed link. Unlike
// the editor panel, a list that fails to parse is rejected so the link
// never carries content other than what was submitted.
func (s *HTTPServer) handleShare(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	if err := form.Err(); err != nil {
		s.writeMappedError(w, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil))
		return
	}

	canonical, err := share.Marshal(form.Snapshot)
	if err != nil {
		s.logger.Warn("share marshal failed", "request_id", requestID(r.Context()), "error", err)
		s.writeMappedError(w, err)
		return
	}
	if len(canonical) > share.MaxSnapshotBytes {
		s.writeMappedError(w, domainError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("project exceeds %d bytes when serialized", share.MaxSnapshotBytes), nil))
		return
	}

	key, err := s.secrets.Key()
	if err != nil {
		s.logger.Error("share secret unavailable", "error", err)
		s.writeMappedError(w, err)
		return
	}
	token, err := share.Seal(key, canonical)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if n := len(token.String()); n > s.maxToken {
		s.logger.Warn("share token too long", "request_id", requestID(r.Context()), "token_bytes", n)
		s.writeMappedError(w, domainError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("share link would exceed %d bytes", s.maxToken), nil))
		return
	}

	s.logger.Info("share link created", "short_id", token.ShortID, "snapshot_bytes", len(canonical), "payload_bytes", len(token.Payload))
	writeJSON(w, http.StatusOK, shareResponse{
		ID:      token.ShortID,
		URL:     token.URL(s.cfg.BaseURL),
		Payload: token.Payload,
		Sig:     token.Signature,
	})
}

// handleShareDecode verifies a token and returns its snapshot in canonical
// form. Decode diagnostics go to the log only.
func (s *HTTPServer) handleShareDecode(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("t"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "INVALID_SHARE_DATA", share.UserMessage+": missing token", nil)
		return
	}
	if len(token) > s.maxToken {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("token exceeds %d bytes", s.maxToken), nil)
		return
	}

	key, err := s.secrets.Key()
	if err != nil {
		s.logger.Error("share secret unavailable", "error", err)
		s.writeMappedError(w, err)
		return
	}
	snap, err := share.Decode(key, token)
	if err != nil {
		var decodeErr *share.DecodeError
		if errors.As(err, &decodeErr) {
			s.logger.Warn("share decode rejected",
				"request_id", requestID(r.Context()),
				"share_kind", decodeErr.Kind.Error(),
				"detail", decodeErr.Detail,
			)
		}
		s.writeMappedError(w, err)
		return
	}

	canonical, err := share.Marshal(snap)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(canonical)
}
