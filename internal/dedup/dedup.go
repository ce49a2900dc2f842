// Package dedup holds the per-run translation cache. Every distinct
// protected text is queued for translation at most once; blank texts map to
// themselves and are never queued.
package dedup

import "strings"

// Cache maps a protected text to its translation. A Cache is built at the
// start of a run and discarded at its end.
type Cache struct {
	entries  map[string]string
	resolved map[string]bool
	pending  []string
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		entries:  make(map[string]string),
		resolved: make(map[string]bool),
	}
}

// IsBlank reports whether text is empty or whitespace-only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Add registers value. It returns true only the first time a non-blank value
// is seen, meaning the caller must get it translated. Blank values are
// resolved to themselves immediately.
func (c *Cache) Add(value string) bool {
	if _, ok := c.entries[value]; ok {
		return false
	}
	if IsBlank(value) {
		c.entries[value] = value
		c.resolved[value] = true
		return false
	}
	c.entries[value] = ""
	c.pending = append(c.pending, value)
	return true
}

// Pending returns the queued values in first-seen order.
func (c *Cache) Pending() []string {
	out := make([]string, len(c.pending))
	copy(out, c.pending)
	return out
}

// Resolve stores the translation for value.
func (c *Cache) Resolve(value, translation string) {
	c.entries[value] = translation
	c.resolved[value] = true
}

// Lookup returns the translation for value if it has been resolved.
func (c *Cache) Lookup(value string) (string, bool) {
	if !c.resolved[value] {
		return "", false
	}
	return c.entries[value], true
}

// Missing returns the queued values that still have no translation.
func (c *Cache) Missing() []string {
	var missing []string
	for _, v := range c.pending {
		if !c.resolved[v] {
			missing = append(missing, v)
		}
	}
	return missing
}

// Len returns the number of distinct values known to the cache.
func (c *Cache) Len() int {
	return len(c.entries)
}
