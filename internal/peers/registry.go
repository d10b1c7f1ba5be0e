package peers

import (
	"slices"
	"strings"
	"sync"
)

// Registry is the set of peer addresses this node talks to.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]struct{}
	self  string
}

// NewRegistry returns a registry that ignores self, the node's own address.
func NewRegistry(self string, initial ...string) *Registry {
	r := &Registry{
		peers: make(map[string]struct{}),
		self:  Normalize(self),
	}
	r.Add(initial...)
	return r
}

// Add registers addresses and returns how many were new. Blank entries and
// the node's own address are skipped.
func (r *Registry) Add(addrs ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, addr := range addrs {
		addr = Normalize(addr)
		if addr == "" || addr == r.self {
			continue
		}
		if _, ok := r.peers[addr]; ok {
			continue
		}
		r.peers[addr] = struct{}{}
		added++
	}
	return added
}

func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, Normalize(addr))
}

// List returns the registered peers sorted by address.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for addr := range r.peers {
		out = append(out, addr)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Normalize trims whitespace and trailing slashes and prefixes bare host:port
// addresses with http://.
func Normalize(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr
}
