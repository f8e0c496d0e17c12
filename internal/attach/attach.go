// Package attach stores diagnostic artifacts next to the test that produced
// them.
package attach

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crmqa/crm-e2e/internal/testing/format"
	"github.com/sirupsen/logrus"
)

// ContentType identifies the media type of an attachment.
type ContentType string

// Content types produced by the harness.
const (
	Text       ContentType = "text/plain"
	JSON       ContentType = "application/json"
	PNG        ContentType = "image/png"
	ZIP        ContentType = "application/zip"
	MotionJPEG ContentType = "video/x-motion-jpeg"
	WebM       ContentType = "video/webm"
)

// Extension returns the file extension used for ct.
func (ct ContentType) Extension() string {
	switch ct {
	case Text:
		return ".log"
	case JSON:
		return ".json"
	case PNG:
		return ".png"
	case ZIP:
		return ".zip"
	case MotionJPEG:
		return ".mjpeg"
	case WebM:
		return ".webm"
	default:
		return ".bin"
	}
}

// ManifestFile is appended to with one JSON line per attachment.
const ManifestFile = "attachments.jsonl"

var errEmptyName = errors.New("attachment name is empty")

// Sink accepts artifacts for a test's report.
type Sink interface {
	Attach(testID, name string, ct ContentType, data []byte) error
	AttachFile(testID, name, path string, ct ContentType) error
}

// Record describes one stored attachment.
type Record struct {
	Seq         int         `json:"seq"`
	TestID      string      `json:"test_id"`
	Name        string      `json:"name"`
	ContentType ContentType `json:"content_type"`
	Path        string      `json:"path"`
	SizeBytes   int64       `json:"size_bytes"`
	Timestamp   time.Time   `json:"timestamp"`
}

// DirSink writes attachments below Root/<slug(testID)>/.
type DirSink struct {
	root string

	mu  sync.Mutex
	seq map[string]int
}

// NewDirSink creates a sink rooted at root.
func NewDirSink(root string) *DirSink {
	return &DirSink{
		root: root,
		seq:  make(map[string]int),
	}
}

// Root returns the sink's root directory.
func (s *DirSink) Root() string {
	return s.root
}

// Attach stores data as the next attachment for testID.
func (s *DirSink) Attach(testID, name string, ct ContentType, data []byte) error {
	return s.store(testID, name, ct, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
}

// AttachFile copies the file at path as the next attachment for testID.
func (s *DirSink) AttachFile(testID, name, path string, ct ContentType) error {
	src, err := os.Open(path) // #nosec G304 -- artifact paths are produced by the harness
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	return s.store(testID, name, ct, func(w io.Writer) (int64, error) {
		return io.Copy(w, src)
	})
}

func (s *DirSink) store(testID, name string, ct ContentType, write func(io.Writer) (int64, error)) error {
	if strings.TrimSpace(name) == "" {
		return errEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slug := format.Slug(testID)
	dir := filepath.Join(s.root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating attachment dir: %w", err)
	}

	s.seq[slug]++
	seq := s.seq[slug]

	path := filepath.Join(dir, fmt.Sprintf("%03d-%s%s", seq, format.Slug(name), ct.Extension()))

	out, err := os.Create(path) // #nosec G304 -- derived from slugged identifiers
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	size, err := write(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return appendManifest(filepath.Join(dir, ManifestFile), Record{
		Seq:         seq,
		TestID:      testID,
		Name:        name,
		ContentType: ct,
		Path:        path,
		SizeBytes:   size,
		Timestamp:   time.Now().UTC(),
	})
}

func appendManifest(path string, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding manifest record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- fixed name inside the sink root
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending manifest: %w", err)
	}

	return nil
}

// ReadManifest returns the records stored for testID under root.
func ReadManifest(root, testID string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Join(root, format.Slug(testID), ManifestFile)) // #nosec G304 -- derived from slugged identifiers
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var records []Record
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("decoding manifest line: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Safe runs fn as an isolated best-effort step. Errors and panics are logged
// at debug level and never reach the caller.
func Safe(log logrus.FieldLogger, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Debugf("%s recovered", what)
		}
	}()

	if err := fn(); err != nil {
		log.WithError(err).Debugf("%s failed", what)
	}
}

var _ Sink = (*DirSink)(nil)
