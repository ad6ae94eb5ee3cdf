package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/minio/minio-go/v7"

	"specstudio/internal/archive"
	"specstudio/internal/export"
	"specstudio/internal/history"
	"specstudio/internal/project"
	"specstudio/internal/share"
)

func zipEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(body)
	}
	return out
}

func TestExportZip(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	snap := sampleSnapshot()
	rr := postForm(t, h, "/export", snapshotForm(snap))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "artifacts_") {
		t.Fatalf("content disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	files := zipEntries(t, rr.Body.Bytes())
	if files[export.PathPRD] != snap.Script {
		t.Fatal("PRD.md mismatch")
	}
	if !strings.Contains(files[export.PathTickets], "migration applies cleanly") {
		t.Fatalf("tickets.json missing checklist: %s", files[export.PathTickets])
	}
}

func TestExportSubstitutesDefaultsForBadLists(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	form := snapshotForm(project.Default())
	form.Set("scenes_json", "{oops")
	form.Set("script_text", "## Custom\n")
	rr := postForm(t, h, "/export", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	files := zipEntries(t, rr.Body.Bytes())
	if files[export.PathPRD] != "## Custom\n" {
		t.Fatalf("PRD.md = %q", files[export.PathPRD])
	}
	if !strings.Contains(files[export.PathEpics], "Core CRUD") {
		t.Fatalf("epics.json = %s", files[export.PathEpics])
	}
}

func TestExportPublishWithoutArchive(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := postForm(t, h, "/export?publish=1", snapshotForm(project.Default()))
	assertError(t, rr, http.StatusServiceUnavailable, "ARCHIVE_DISABLED")
}

type memoryObjects struct {
	objects map[string]int64
}

func (m *memoryObjects) BucketExists(context.Context, string) (bool, error) { return true, nil }

func (m *memoryObjects) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	return nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.objects[bucket+"/"+key] = n
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (m *memoryObjects) PresignedGetObject(_ context.Context, bucket, key string, _ time.Duration, _ url.Values) (*url.URL, error) {
	return &url.URL{Scheme: "https", Host: "s3.test", Path: "/" + bucket + "/" + key}, nil
}

func TestExportPublish(t *testing.T) {
	store := &memoryObjects{objects: map[string]int64{}}
	h := newTestServer(t, func(d *Deps) {
		d.Archive = archive.NewWithStore(store, "exports-bucket", time.Hour)
	}).Handler()

	rr := postForm(t, h, "/export?publish=1", snapshotForm(project.Default()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	key, _ := body["key"].(string)
	if !strings.HasPrefix(key, "exports/") || !strings.HasSuffix(key, ".zip") {
		t.Fatalf("key = %q", key)
	}
	if body["url"] != "https://s3.test/exports-bucket/"+key {
		t.Fatalf("url = %v", body["url"])
	}
	if size, _ := body["size"].(float64); size <= 0 || int64(size) != store.objects["exports-bucket/"+key] {
		t.Fatalf("size = %v, stored %d", body["size"], store.objects["exports-bucket/"+key])
	}
}

func TestExportRecordsHistory(t *testing.T) {
	hist := history.New(t.TempDir())
	h := newTestServer(t, func(d *Deps) { d.History = hist }).Handler()

	snap := sampleSnapshot()
	rr := postForm(t, h, "/export", snapshotForm(snap))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-History-Commit") == "" {
		t.Fatal("missing X-History-Commit header")
	}

	token, err := share.Encode([]byte(testSecret), snap)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	rr = get(t, h, "/history")
	if rr.Code != http.StatusOK {
		t.Fatalf("history status = %d", rr.Code)
	}
	body := decodeJSON(t, rr)
	commits, _ := body["commits"].([]any)
	if body["enabled"] != true || len(commits) != 1 {
		t.Fatalf("history = %v", body)
	}
	first := commits[0].(map[string]any)
	if first["message"] != "Export "+token.ShortID {
		t.Fatalf("message = %v, want Export %s", first["message"], token.ShortID)
	}
}

func TestHistoryDisabledAndLimit(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	body := decodeJSON(t, get(t, h, "/history"))
	if body["enabled"] != false {
		t.Fatalf("history = %v", body)
	}

	withHistory := newTestServer(t, func(d *Deps) { d.History = history.New(t.TempDir()) }).Handler()
	assertError(t, get(t, withHistory, "/history?limit=zero"), http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domainError(http.StatusConflict, "CONFLICT", "x", nil), http.StatusConflict, "CONFLICT"},
		{&share.DecodeError{Kind: share.ErrCorruptPayload, Detail: "zlib"}, http.StatusBadRequest, "INVALID_SHARE_DATA"},
		{&share.DecodeError{Kind: share.ErrPayloadTooLarge}, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{share.ErrInvalidSnapshot, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{export.ErrPDFDependencyMissing, http.StatusNotImplemented, "PDF_UNAVAILABLE"},
		{archive.ErrDisabled, http.StatusServiceUnavailable, "ARCHIVE_DISABLED"},
		{errors.New("boom"), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tt := range tests {
		status, code, message, _ := mapError(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("mapError(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
		if strings.Contains(message, "zlib") {
			t.Errorf("mapError leaked detail: %q", message)
		}
	}
}
