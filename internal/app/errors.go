package app

import (
	"errors"
	"fmt"
	"net/http"

	"specstudio/internal/archive"
	"specstudio/internal/export"
	"specstudio/internal/share"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var decodeErr *share.DecodeError
	if errors.As(err, &decodeErr) {
		if errors.Is(decodeErr, share.ErrPayloadTooLarge) {
			return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", decodeErr.Message(), nil
		}
		return http.StatusBadRequest, "INVALID_SHARE_DATA", decodeErr.Message(), nil
	}
	if errors.Is(err, share.ErrPayloadTooLarge) {
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Project is too large to share", nil
	}
	if errors.Is(err, share.ErrInvalidSnapshot) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Project contains invalid values", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusNotImplemented, "PDF_UNAVAILABLE", "PDF export requires chromium on the server", nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported export format", nil
	}
	if errors.Is(err, archive.ErrDisabled) {
		return http.StatusServiceUnavailable, "ARCHIVE_DISABLED", "Publishing is not configured", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
