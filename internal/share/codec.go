// Package share turns a project snapshot into a compact, URL-safe,
// tamper-evident token and back, without any server-side storage.
//
// A token has three dot-separated segments:
//
//	short_id.payload.signature
//
// payload is the zlib-compressed canonical JSON of the snapshot in
// unpadded URL-safe base64. signature is HMAC-SHA256 over the payload
// text, keyed with the process secret. short_id is the first 8 hex
// characters of SHA-256 over the compressed bytes; it is a label for
// humans and deduplication and is never used to verify anything.
//
// Tokens are signed, not encrypted. Anyone holding a token can read the
// full snapshot out of the payload segment. Links should be embedded in a
// URL fragment so they are not sent to the server on page load.
package share

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"

	"specstudio/internal/project"
)

// MaxSnapshotBytes bounds the canonical JSON of a snapshot, both when
// the boundary accepts one for encoding and when a payload is inflated.
const MaxSnapshotBytes = 8 << 20

// MaxTokenBytes bounds the length of a token string accepted for decoding.
const MaxTokenBytes = 4 << 20

// FragmentKey is the URL fragment key that carries a token.
const FragmentKey = "p"

const shortIDLen = 8

// Token is the signed, encoded form of a snapshot.
type Token struct {
	ShortID   string
	Payload   string
	Signature string
}

// String joins the segments into the wire form.
func (t Token) String() string {
	return t.ShortID + "." + t.Payload + "." + t.Signature
}

// URL returns baseURL with the token in the #p= fragment.
func (t Token) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/#" + FragmentKey + "=" + t.String()
}

// wireSnapshot fixes the field order of the canonical encoding.
type wireSnapshot struct {
	Version int             `json:"v"`
	Script  string          `json:"script"`
	Rules   string          `json:"rules"`
	Scenes  []project.Scene `json:"scenes"`
	Shots   []project.Shot  `json:"shots"`
	Packs   project.Packs   `json:"packs"`
}

type wireFields struct {
	Script *string          `json:"script"`
	Rules  *string          `json:"rules"`
	Scenes *[]project.Scene `json:"scenes"`
	Shots  *[]project.Shot  `json:"shots"`
	Packs  *project.Packs   `json:"packs"`
}

// Encode serializes, compresses and signs snap.
func Encode(secret []byte, snap project.Snapshot) (Token, error) {
	canonical, err := Marshal(snap)
	if err != nil {
		return Token{}, err
	}
	return Seal(secret, canonical)
}

// Marshal returns the canonical JSON of snap: fixed field order, no
// insignificant whitespace, no HTML escaping. Boundary layers measure
// this against MaxSnapshotBytes before sealing.
func Marshal(snap project.Snapshot) ([]byte, error) {
	if err := validate(snap); err != nil {
		return nil, err
	}
	norm := snap.Normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireSnapshot{
		Version: project.FormatVersion,
		Script:  norm.Script,
		Rules:   norm.Rules,
		Scenes:  norm.Scenes,
		Shots:   norm.Shots,
		Packs:   norm.Packs,
	}); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Seal compresses canonical snapshot bytes and signs the result.
func Seal(secret []byte, canonical []byte) (Token, error) {
	if len(canonical) > MaxSnapshotBytes {
		return Token{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(canonical))
	}
	compressed, err := compress(canonical)
	if err != nil {
		return Token{}, err
	}
	payload := base64.RawURLEncoding.EncodeToString(compressed)
	return Token{
		ShortID:   shortID(compressed),
		Payload:   payload,
		Signature: sign(secret, payload),
	}, nil
}

// Decode verifies token and reconstructs its snapshot. Failures are
// returned as *DecodeError.
func Decode(secret []byte, token string) (project.Snapshot, error) {
	return DecodeLimit(secret, token, MaxSnapshotBytes)
}

// DecodeLimit is Decode with an explicit bound on the inflated payload.
func DecodeLimit(secret []byte, token string, limit int) (project.Snapshot, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return project.Snapshot{}, decodeError(ErrMalformedToken, "expected 3 segments, got %d", len(parts))
	}
	payload := parts[1]
	signature := parts[2]

	expected := sign(secret, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return project.Snapshot{}, decodeError(ErrInvalidSignature, "signature does not match payload")
	}

	compressed, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return project.Snapshot{}, decodeError(ErrCorruptPayload, "base64: %v", err)
	}
	canonical, err := decompress(compressed, limit)
	if err != nil {
		return project.Snapshot{}, err
	}
	return unmarshal(canonical)
}

// Unmarshal parses snapshot JSON in the canonical wire shape, as written
// by Marshal. Failures are *DecodeError values.
func Unmarshal(canonical []byte) (project.Snapshot, error) {
	if len(canonical) > MaxSnapshotBytes {
		return project.Snapshot{}, decodeError(ErrPayloadTooLarge, "%d bytes", len(canonical))
	}
	return unmarshal(canonical)
}

func unmarshal(canonical []byte) (project.Snapshot, error) {
	var probe struct {
		Version json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(canonical, &probe); err != nil {
		return project.Snapshot{}, decodeError(ErrInvalidSnapshot, "json: %v", err)
	}
	if err := checkVersion(probe.Version); err != nil {
		return project.Snapshot{}, err
	}

	var fields wireFields
	if err := json.Unmarshal(canonical, &fields); err != nil {
		return project.Snapshot{}, decodeError(ErrInvalidSnapshot, "json: %v", err)
	}
	missing := ""
	switch {
	case fields.Script == nil:
		missing = "script"
	case fields.Rules == nil:
		missing = "rules"
	case fields.Scenes == nil:
		missing = "scenes"
	case fields.Shots == nil:
		missing = "shots"
	case fields.Packs == nil:
		missing = "packs"
	}
	if missing != "" {
		return project.Snapshot{}, decodeError(ErrInvalidSnapshot, "missing field %q", missing)
	}
	snap := project.Snapshot{
		Script: *fields.Script,
		Rules:  *fields.Rules,
		Scenes: *fields.Scenes,
		Shots:  *fields.Shots,
		Packs:  *fields.Packs,
	}
	return snap.Normalize(), nil
}

// checkVersion classifies the raw "v" member. Any number above the
// current version is unsupported, whatever its JSON spelling.
func checkVersion(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return decodeError(ErrInvalidSnapshot, "missing format version")
	}
	if raw[0] == '"' {
		return decodeError(ErrInvalidSnapshot, "format version %s is not a number", raw)
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return decodeError(ErrInvalidSnapshot, "format version %s is not a number", raw)
	}
	switch {
	case v > project.FormatVersion:
		return decodeError(ErrUnsupportedVersion, "format version %s, max %d", raw, project.FormatVersion)
	case v != project.FormatVersion:
		return decodeError(ErrInvalidSnapshot, "format version %s", raw)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte, limit int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(ErrCorruptPayload, "zlib header: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, decodeError(ErrCorruptPayload, "inflate: %v", err)
	}
	if len(out) > limit {
		return nil, decodeError(ErrPayloadTooLarge, "inflated payload exceeds %d bytes", limit)
	}
	return out, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

func shortID(compressed []byte) string {
	sum := sha256.Sum256(compressed)
	return hex.EncodeToString(sum[:])[:shortIDLen]
}

// validate rejects snapshots that could not survive a round trip.
func validate(snap project.Snapshot) error {
	bad := func(field, value string) error {
		if utf8.ValidString(value) {
			return nil
		}
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidSnapshot, field)
	}
	errs := []error{bad("script", snap.Script), bad("rules", snap.Rules)}
	for _, s := range snap.Scenes {
		errs = append(errs, bad("scene id", s.ID), bad("scene title", s.Title), bad("scene goal", s.Goal), bad("scene risk", s.Risk))
	}
	for _, s := range snap.Shots {
		errs = append(errs, bad("shot id", s.ID), bad("shot epic_id", s.SceneID), bad("shot title", s.Title), bad("shot description", s.Description))
		if !s.Status.Valid() || !s.Priority.Valid() {
			errs = append(errs, fmt.Errorf("%w: shot %q status %q priority %q", ErrInvalidSnapshot, s.ID, s.Status, s.Priority))
		}
		for _, c := range s.Checklist {
			errs = append(errs, bad("checklist text", c.Text))
			if !c.Tag.Valid() {
				errs = append(errs, fmt.Errorf("%w: checklist tag %q", ErrInvalidSnapshot, c.Tag))
			}
		}
	}
	return errors.Join(errs...)
}
