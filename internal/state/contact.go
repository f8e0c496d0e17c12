package state

import (
	"fmt"
	"regexp"
	"strings"
)

// EditMarker prefixes the surname of an edited contact.
const EditMarker = "EDITADO"

var editPrefix = regexp.MustCompile(`^` + EditMarker + ` \d+ `)

// Contact identifies the last contact created through the UI.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
	EditCount int    `json:"editCount"`
}

// NewContact builds a never-edited contact.
func NewContact(first, last string) Contact {
	return Contact{
		FirstName: first,
		LastName:  last,
		FullName:  strings.TrimSpace(first + " " + last),
	}
}

// BaseLastName returns the surname without any edit marker.
func (c Contact) BaseLastName() string {
	return editPrefix.ReplaceAllString(c.LastName, "")
}

// NextEdit returns the contact as it should look after one more edit.
func NextEdit(c Contact) Contact {
	next := c
	next.EditCount = c.EditCount + 1
	next.LastName = fmt.Sprintf("%s %d %s", EditMarker, next.EditCount, c.BaseLastName())
	next.FullName = strings.TrimSpace(next.FirstName + " " + next.LastName)
	return next
}

// ContactStore persists the last created contact.
type ContactStore struct {
	Path string
}

// NewContactStore creates a store backed by path.
func NewContactStore(path string) *ContactStore {
	return &ContactStore{Path: path}
}

// Load returns the saved contact or ErrNotFound.
func (s *ContactStore) Load() (Contact, error) {
	var c Contact
	if err := readJSON(s.Path, &c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// Save replaces the saved contact.
func (s *ContactStore) Save(c Contact) error {
	return writeJSON(s.Path, c)
}

// Exists reports whether a contact has been saved.
func (s *ContactStore) Exists() bool {
	return exists(s.Path)
}

// Clear removes the saved contact; a missing file is not an error.
func (s *ContactStore) Clear() error {
	return remove(s.Path)
}
