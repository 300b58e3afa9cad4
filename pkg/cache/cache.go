// Package cache provides an LRU cache for partition reports with disk
// persistence, so repeated runs over an unchanged graph skip resolution.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the on-disk layout changes. Files with a
// different version are discarded rather than misread.
const formatVersion = 1

// Entry is one cached partition report with access metadata.
type Entry struct {
	Key        string    `msgpack:"key"`
	Report     []byte    `msgpack:"report"` // serialized partition report
	CreatedAt  time.Time `msgpack:"created_at"`
	AccessedAt time.Time `msgpack:"accessed_at"`
}

// ReportCache is an in-memory LRU cache keyed by graph fingerprint, with
// optional disk persistence under the tool's state directory.
type ReportCache struct {
	mu      sync.Mutex
	items   map[string]*listItem
	lru     *list
	maxSize int
}

type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list with the most recently used entry at the front.
type list struct {
	head *listItem
	tail *listItem
	len  int
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	if item.prev != nil {
		item.prev.next = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	}
	if item == l.tail {
		l.tail = item.prev
	}
	item.prev = nil
	item.next = l.head
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list) removeBack() *listItem {
	if l.tail == nil {
		return nil
	}
	item := l.tail
	l.tail = item.prev
	if l.tail != nil {
		l.tail.next = nil
	} else {
		l.head = nil
	}
	l.len--
	return item
}

// New creates a report cache holding at most maxSize entries. maxSize of 0
// means unlimited.
func New(maxSize int) *ReportCache {
	return &ReportCache{
		items:   make(map[string]*listItem),
		lru:     &list{},
		maxSize: maxSize,
	}
}

// Get retrieves a cached report by key.
func (c *ReportCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Report, true
}

// Set stores a report under the given key, evicting the least recently used
// entry when the cache is full.
func (c *ReportCache) Set(key string, report []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.Report = report
		item.AccessedAt = time.Now()
		c.lru.moveToFront(item)
		return
	}

	item := &listItem{Entry: Entry{
		Key:        key,
		Report:     report,
		CreatedAt:  time.Now(),
		AccessedAt: time.Now(),
	}}
	c.items[key] = item
	c.lru.pushFront(item)

	for c.maxSize > 0 && c.lru.len > c.maxSize {
		evicted := c.lru.removeBack()
		if evicted == nil {
			break
		}
		delete(c.items, evicted.Key)
	}
}

// Delete removes a key from the cache.
func (c *ReportCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.lru.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.lru.tail = item.prev
	}
	c.lru.len--
	delete(c.items, key)
}

// Clear removes all entries.
func (c *ReportCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem)
	c.lru = &list{}
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type cacheFile struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save persists the cache in msgpack format, most recently used first.
func (c *ReportCache) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file := cacheFile{Version: formatVersion}
	for item := c.lru.head; item != nil; item = item.next {
		file.Entries = append(file.Entries, item.Entry)
	}
	return msgpack.NewEncoder(w).Encode(file)
}

// Load replaces the cache contents from a msgpack stream. A version mismatch
// leaves the cache empty rather than failing, since the cache is disposable.
func (c *ReportCache) Load(r io.Reader) error {
	var file cacheFile
	if err := msgpack.NewDecoder(r).Decode(&file); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem)
	c.lru = &list{}
	if file.Version != formatVersion {
		return nil
	}
	for i := len(file.Entries) - 1; i >= 0; i-- {
		item := &listItem{Entry: file.Entries[i]}
		c.items[item.Key] = item
		c.lru.pushFront(item)
	}
	return nil
}

// SaveFile persists the cache to a file, creating parent directories.
func (c *ReportCache) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()
	return c.Save(f)
}

// LoadFile restores the cache from a file. A missing file is not an error.
func (c *ReportCache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}

// Key fingerprints a graph file's content together with the resolver
// settings that influence the report. Any change to either invalidates the
// cached report.
func Key(graphData []byte, settings map[string]string) string {
	h := sha256.New()
	h.Write(graphData)

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, settings[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
