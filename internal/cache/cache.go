// Package cache holds fetched indicator tables for the lifetime of a session.
package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

const (
	DefaultSize = 512
	DefaultTTL  = time.Hour
)

// Key identifies one fetch: a source plus the exact request arguments.
type Key struct {
	Source    string
	Entity    string
	Indicator string
	From      int
	To        int
}

func KeyFor(source string, req indicator.Request) Key {
	return Key{Source: source, Entity: req.Entity, Indicator: req.Indicator, From: req.From, To: req.To}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%d-%d", k.Source, k.Indicator, k.Entity, k.From, k.To)
}

// Entry is a cached result. Empty tables are cached too so known gaps are not refetched.
type Entry struct {
	Table     indicator.Table
	FetchedAt time.Time
}

// Cache is a bounded LRU whose entries expire after the session TTL.
// It is safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[Key, Entry]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[Key, Entry](size, nil, ttl)}
}

func (c *Cache) Get(k Key) (Entry, bool) {
	return c.lru.Get(k)
}

func (c *Cache) Put(k Key, tbl indicator.Table) {
	c.lru.Add(k, Entry{Table: tbl, FetchedAt: time.Now()})
}

func (c *Cache) Invalidate(k Key) bool {
	return c.lru.Remove(k)
}

// InvalidateSource drops every entry fetched from source and returns how many were removed.
func (c *Cache) InvalidateSource(source string) int {
	n := 0
	for _, k := range c.lru.Keys() {
		if k.Source == source && c.lru.Remove(k) {
			n++
		}
	}
	return n
}

func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
