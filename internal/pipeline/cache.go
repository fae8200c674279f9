package pipeline

import (
	"maps"
	"slices"
	"sync"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
)

// cacheKey identifies an analysis by input bytes and output mode. Full reports
// of tables without a date column carry the current time and are not cached.
func cacheKey(raw domain.RawTable, mode Mode) (string, bool) {
	if raw.Digest == "" {
		return "", false
	}
	if mode == ModeFull {
		if _, ok := domain.ResolveColumns(raw.Order)[domain.ColDate]; !ok {
			return "", false
		}
	}
	return raw.Digest + "|" + string(mode), true
}

// reportCache is a thread-safe LRU of assembled reports. Stored reports carry
// no ID; the caller assigns one per delivery.
type reportCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value Report
	prev  *entry
	next  *entry
}

func newReportCache(maxEntries int) *reportCache {
	return &reportCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *reportCache) get(key string) (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Report{}, false
	}
	c.moveToFront(e)
	return cloneReport(e.value), true
}

func (c *reportCache) put(key string, value Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value = cloneReport(value)
	value.ReportID = ""
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// cloneReport deep-copies the maps and slices of r so callers never share
// storage with a cached entry.
func cloneReport(r Report) Report {
	out := r
	out.MLPerformance = maps.Clone(r.MLPerformance)
	out.Breakdown.Levels = maps.Clone(r.Breakdown.Levels)
	out.Breakdown.Hourly = slices.Clone(r.Breakdown.Hourly)
	out.Breakdown.AccidentHotspots = slices.Clone(r.Breakdown.AccidentHotspots)
	out.Breakdown.FatalityHotspots = slices.Clone(r.Breakdown.FatalityHotspots)
	if r.ProcessedData != nil {
		out.ProcessedData = make([]domain.Record, len(r.ProcessedData))
		for i, rec := range r.ProcessedData {
			if rec.Date != nil {
				d := *rec.Date
				rec.Date = &d
			}
			out.ProcessedData[i] = rec
		}
	}
	return out
}

func (c *reportCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *reportCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *reportCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *reportCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *reportCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
