package lru

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 10000

// Observer receives cache statistics. metrics.Recorder implements it.
type Observer interface {
	CacheHit(scope string)
	CacheMiss(scope string)
	CacheEvicted()
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)  {}
func (nopObserver) CacheMiss(string) {}
func (nopObserver) CacheEvicted()    {}

// Cache keeps JSON encoded objects and lists of object keys in one LRU. It
// tracks which lists reference every object so child deletes can prune them.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, []byte]
	parents  map[string]map[string]struct{}
	observer Observer
	removing bool
}

type Option func(*Cache)

func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

func New(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache{
		parents:  make(map[string]map[string]struct{}),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	entries, err := lru.NewWithEvict[string, []byte](size, c.onEvicted)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// onEvicted runs inside entries calls made with mu held.
func (c *Cache) onEvicted(key string, value []byte) {
	if !c.removing {
		c.observer.CacheEvicted()
	}
	if !isListKey(key) {
		return
	}
	var keys []string
	if err := json.Unmarshal(value, &keys); err != nil {
		return
	}
	for _, k := range keys {
		c.unlinkParent(k, key)
	}
}

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	raw, ok := c.entries.Get(key)
	c.mu.Unlock()

	if !ok {
		c.observer.CacheMiss(scopeOf(key))
		return false, nil
	}
	c.observer.CacheHit(scopeOf(key))
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, raw)
	return nil
}

func (c *Cache) Update(_ context.Context, key string, patch map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries.Peek(key)
	if !ok {
		return nil
	}
	obj := map[string]any{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	for k, v := range patch {
		obj[k] = v
	}
	merged, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	c.entries.Add(key, merged)
	return nil
}

func (c *Cache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.remove(k)
	}
	return nil
}

func (c *Cache) DelAll(_ context.Context, scope domain.CacheScope, pattern string) error {
	glob := string(scope) + ":" + pattern
	if _, err := path.Match(glob, ""); err != nil {
		return fmt.Errorf("bad cache pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := string(scope) + ":"
	for _, k := range c.entries.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if ok, _ := path.Match(glob, k); ok {
			c.remove(k)
		}
	}
	return nil
}

func (c *Cache) DeepDel(_ context.Context, key string, dir domain.CacheDelDirection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch dir {
	case domain.ChildToParent:
		for listKey := range c.parents[key] {
			keys, ok := c.listKeys(listKey)
			if !ok {
				continue
			}
			kept := make([]string, 0, len(keys))
			for _, k := range keys {
				if k != key {
					kept = append(kept, k)
				}
			}
			if err := c.storeList(listKey, kept); err != nil {
				return err
			}
		}
		delete(c.parents, key)
		c.remove(key)
	case domain.ParentToChild:
		keys, _ := c.listKeys(key)
		c.remove(key)
		for _, k := range keys {
			c.remove(k)
			delete(c.parents, k)
		}
	default:
		return fmt.Errorf("unknown cache delete direction %d", dir)
	}
	return nil
}

func (c *Cache) GetList(_ context.Context, scope domain.CacheScope, parents []string, dst any) (bool, error) {
	listKey := domain.ListKey(scope, parents...)

	c.mu.Lock()
	keys, ok := c.listKeys(listKey)
	var items [][]byte
	if ok {
		items = make([][]byte, 0, len(keys))
		for _, k := range keys {
			raw, found := c.entries.Get(k)
			if !found {
				ok = false
				break
			}
			items = append(items, raw)
		}
	}
	c.mu.Unlock()

	if !ok {
		c.observer.CacheMiss(string(scope))
		return false, nil
	}
	c.observer.CacheHit(string(scope))

	buf := make([]byte, 0, 2+len(items)*64)
	buf = append(buf, '[')
	for i, raw := range items {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, raw...)
	}
	buf = append(buf, ']')
	if err := json.Unmarshal(buf, dst); err != nil {
		return false, fmt.Errorf("decode cache list %s: %w", listKey, err)
	}
	return true, nil
}

func (c *Cache) SetList(_ context.Context, scope domain.CacheScope, parents []string, items any) error {
	listKey := domain.ListKey(scope, parents...)
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cache list %s: %w", listKey, err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return fmt.Errorf("cache list %s is not an array: %w", listKey, err)
	}

	keys := make([]string, 0, len(elems))
	for _, elem := range elems {
		var ident struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(elem, &ident); err != nil || ident.ID == "" {
			return fmt.Errorf("cache list %s: item without id", listKey)
		}
		keys = append(keys, domain.Key(scope, ident.ID))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, k := range keys {
		c.entries.Add(k, elems[i])
	}
	return c.storeList(listKey, keys)
}

func (c *Cache) AppendToList(_ context.Context, scope domain.CacheScope, parents []string, key string) error {
	listKey := domain.ListKey(scope, parents...)

	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.listKeys(listKey)
	if !ok {
		return nil
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return c.storeList(listKey, append(keys, key))
}

// Len reports the number of cached entries, objects and lists together.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removing = true
	c.entries.Purge()
	c.removing = false
	c.parents = make(map[string]map[string]struct{})
}

func (c *Cache) listKeys(listKey string) ([]string, bool) {
	raw, ok := c.entries.Peek(listKey)
	if !ok {
		return nil, false
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, false
	}
	return keys, true
}

func (c *Cache) storeList(listKey string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	c.entries.Add(listKey, raw)
	for _, k := range keys {
		set, ok := c.parents[k]
		if !ok {
			set = make(map[string]struct{})
			c.parents[k] = set
		}
		set[listKey] = struct{}{}
	}
	return nil
}

// remove drops key without counting it as an eviction.
func (c *Cache) remove(key string) {
	c.removing = true
	c.entries.Remove(key)
	c.removing = false
}

func (c *Cache) unlinkParent(key, listKey string) {
	set, ok := c.parents[key]
	if !ok {
		return
	}
	delete(set, listKey)
	if len(set) == 0 {
		delete(c.parents, key)
	}
}

func isListKey(key string) bool { return strings.HasSuffix(key, ":list") }

func scopeOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
