package permctx

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/rbac"
)

// DefaultNavCacheSize bounds the number of memoised navigation lists.
const DefaultNavCacheSize = 256

// Navigator filters catalog navigation by permission and memoises the
// result per (role, permission set).
type Navigator struct {
	catalog *catalog.Catalog
	cache   *lru.Cache[string, []catalog.NavItem]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewNavigator constructs a Navigator holding at most size entries.
func NewNavigator(cat *catalog.Catalog, size int) (*Navigator, error) {
	if size <= 0 {
		size = DefaultNavCacheSize
	}
	cache, err := lru.New[string, []catalog.NavItem](size)
	if err != nil {
		return nil, err
	}
	return &Navigator{catalog: cat, cache: cache}, nil
}

// Filter returns role's navigation entries the permission set unlocks.
// Entries without a permission are always kept.
func (n *Navigator) Filter(role string, perms []string) []catalog.NavItem {
	key := role + "|" + Fingerprint(perms)
	if items, ok := n.cache.Get(key); ok {
		n.hits.Add(1)
		return cloneItems(items)
	}
	n.misses.Add(1)

	set := rbac.NewSet(perms)
	all := n.catalog.Navigation(role)
	items := make([]catalog.NavItem, 0, len(all))
	for _, item := range all {
		if item.Permission == "" || set.Has(item.Permission) {
			items = append(items, item)
		}
	}
	n.cache.Add(key, items)
	return cloneItems(items)
}

// Knows reports whether the catalog defines role.
func (n *Navigator) Knows(role string) bool {
	_, ok := n.catalog.Role(role)
	return ok
}

// Stats reports cache hits and misses.
func (n *Navigator) Stats() (hits, misses int64) {
	return n.hits.Load(), n.misses.Load()
}

// Fingerprint identifies a permission set independent of order and
// duplicates.
func Fingerprint(perms []string) string {
	uniq := make([]string, 0, len(perms))
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		uniq = append(uniq, p)
	}
	sort.Strings(uniq)
	sum := sha256.Sum256([]byte(strings.Join(uniq, "\n")))
	return hex.EncodeToString(sum[:8])
}

func cloneItems(in []catalog.NavItem) []catalog.NavItem {
	out := make([]catalog.NavItem, len(in))
	copy(out, in)
	return out
}
