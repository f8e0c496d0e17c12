package state

// Cookie mirrors a browser cookie in storage-state form.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// NameValue is one local storage item.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin holds the local storage of one origin.
type Origin struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

// StorageState is an authenticated browser session snapshot.
type StorageState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// Empty reports whether the snapshot carries nothing to restore.
func (s *StorageState) Empty() bool {
	return s == nil || (len(s.Cookies) == 0 && len(s.Origins) == 0)
}

// AuthStore persists the storage state written after a successful login.
type AuthStore struct {
	Path string
}

// NewAuthStore creates a store backed by path.
func NewAuthStore(path string) *AuthStore {
	return &AuthStore{Path: path}
}

// Load returns the saved state or ErrNotFound.
func (s *AuthStore) Load() (*StorageState, error) {
	var st StorageState
	if err := readJSON(s.Path, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Save replaces the saved state.
func (s *AuthStore) Save(st *StorageState) error {
	if st == nil {
		st = &StorageState{}
	}
	if st.Cookies == nil {
		st.Cookies = []Cookie{}
	}
	if st.Origins == nil {
		st.Origins = []Origin{}
	}
	return writeJSON(s.Path, st)
}

// Exists reports whether a state file is present.
func (s *AuthStore) Exists() bool {
	return exists(s.Path)
}

// Clear removes the state file; a missing file is not an error.
func (s *AuthStore) Clear() error {
	return remove(s.Path)
}
