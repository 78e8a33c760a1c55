// Package session owns per-session mutable state: the active selection
// and the registry of saved lists. Catalog data is shared read-only
// across sessions; nothing in here is visible to another session.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("list not found")
	ErrConflict = errors.New("list name already exists")
)

type SavedList struct {
	Name string `json:"name"`
	IDs  []int  `json:"ids"`
}

type Session struct {
	ID string

	mu       sync.Mutex
	active   map[int]struct{}
	saved    map[string][]int
	lastSeen time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:       id,
		active:   map[int]struct{}{},
		saved:    map[string][]int{},
		lastSeen: now,
	}
}

// Toggle flips membership of an item in the active selection and
// reports whether the item is selected afterwards. Toggling twice
// returns to the prior state.
func (s *Session) Toggle(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		delete(s.active, id)
		return false
	}
	s.active[id] = struct{}{}
	return true
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = map[int]struct{}{}
}

// Replace swaps the active selection for the given IDs, dropping any
// the catalog no longer knows. Used for share-link application and for
// activating a saved list.
func (s *Session) Replace(ids []int, exists func(int) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(ids, exists)
}

func (s *Session) replaceLocked(ids []int, exists func(int) bool) {
	next := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if exists == nil || exists(id) {
			next[id] = struct{}{}
		}
	}
	s.active = next
}

// ActiveIDs returns the selection in ascending order.
func (s *Session) ActiveIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.active)
}

// Save snapshots the active selection under name, overwriting any
// existing list with that name.
func (s *Session) Save(name string) SavedList {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := sortedIDs(s.active)
	s.saved[name] = ids
	return SavedList{Name: name, IDs: ids}
}

// Activate replaces the active selection with a saved list. Identifiers
// no longer present in the catalog are silently dropped.
func (s *Session) Activate(name string, exists func(int) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.saved[name]
	if !ok {
		return ErrNotFound
	}
	s.replaceLocked(ids, exists)
	return nil
}

// Copy duplicates a saved list under "<name> (Copy)" and returns the
// derived name. A collision fails with ErrConflict unless force is set.
func (s *Session) Copy(name string, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.saved[name]
	if !ok {
		return "", ErrNotFound
	}

	derived := name + " (Copy)"
	if _, taken := s.saved[derived]; taken && !force {
		return "", ErrConflict
	}

	s.saved[derived] = append([]int(nil), ids...)
	return derived, nil
}

// Rename moves a saved list to a new name. Renaming onto a different
// existing list fails with ErrConflict unless force is set.
func (s *Session) Rename(oldName, newName string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.saved[oldName]
	if !ok {
		return ErrNotFound
	}
	if oldName == newName {
		return nil
	}
	if _, taken := s.saved[newName]; taken && !force {
		return ErrConflict
	}

	delete(s.saved, oldName)
	s.saved[newName] = ids
	return nil
}

func (s *Session) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.saved[name]; !ok {
		return ErrNotFound
	}
	delete(s.saved, name)
	return nil
}

// Lists returns the saved lists sorted by name.
func (s *Session) Lists() []SavedList {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SavedList, 0, len(s.saved))
	for name, ids := range s.saved {
		out = append(out, SavedList{Name: name, IDs: append([]int(nil), ids...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Session) Get(name string) (SavedList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.saved[name]
	if !ok {
		return SavedList{}, ErrNotFound
	}
	return SavedList{Name: name, IDs: append([]int(nil), ids...)}, nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func sortedIDs(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
