package schema

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// snapshot is an immutable view of all loaded pages indexed by id.
type snapshot struct {
	pages    map[string]model.PageConfig
	order    []string
	checksum string
}

// Registry is a read-optimized, thread-safe store of page configurations.
// Reads are lock-free through an atomic pointer swap.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry holding the given pages.
func NewRegistry(pages []model.PageConfig) *Registry {
	r := &Registry{}
	r.Replace(pages)
	return r
}

// Replace atomically swaps in a new snapshot built from the given pages.
func (r *Registry) Replace(pages []model.PageConfig) {
	s := &snapshot{
		pages: make(map[string]model.PageConfig, len(pages)),
		order: make([]string, 0, len(pages)),
	}

	var checksumParts []string
	for _, p := range pages {
		if _, dup := s.pages[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.pages[p.ID] = p
		checksumParts = append(checksumParts, p.Checksum)
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Get returns the page with the given id.
func (r *Registry) Get(pageID string) (model.PageConfig, bool) {
	p, ok := r.current().pages[pageID]
	return p, ok
}

// All returns every page in load order.
func (r *Registry) All() []model.PageConfig {
	s := r.current()
	pages := make([]model.PageConfig, 0, len(s.order))
	for _, id := range s.order {
		pages = append(pages, s.pages[id])
	}
	return pages
}

// Len returns the number of loaded pages.
func (r *Registry) Len() int {
	return len(r.current().pages)
}

// Checksum returns the combined checksum of all loaded pages.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
