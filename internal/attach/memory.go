package attach

import (
	"fmt"
	"os"
	"sync"
)

// Attachment is an artifact held by MemorySink.
type Attachment struct {
	TestID      string
	Name        string
	ContentType ContentType
	Data        []byte
}

// MemorySink keeps attachments in memory. It backs unit tests and dry runs.
type MemorySink struct {
	mu    sync.Mutex
	items []Attachment
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Attach records a copy of data.
func (s *MemorySink) Attach(testID, name string, ct ContentType, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, Attachment{
		TestID:      testID,
		Name:        name,
		ContentType: ct,
		Data:        append([]byte(nil), data...),
	})

	return nil
}

// AttachFile reads path and records its contents.
func (s *MemorySink) AttachFile(testID, name, path string, ct ContentType) error {
	data, err := os.ReadFile(path) // #nosec G304 -- artifact paths are produced by the harness
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return s.Attach(testID, name, ct, data)
}

// Items returns a copy of everything attached so far.
func (s *MemorySink) Items() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Attachment, len(s.items))
	copy(out, s.items)
	return out
}

// Named returns the attachments whose name equals name.
func (s *MemorySink) Named(name string) []Attachment {
	var out []Attachment
	for _, item := range s.Items() {
		if item.Name == name {
			out = append(out, item)
		}
	}
	return out
}

var _ Sink = (*MemorySink)(nil)
