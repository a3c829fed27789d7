package scratch

import (
	"sort"
	"time"
)

// Entry is a scratch file that has been written but neither promoted nor
// discarded yet.
type Entry struct {
	Path      string
	Name      string
	CreatedAt time.Time
}

type tracker struct {
	open map[string]Entry
	now  func() time.Time
}

func newTracker() *tracker {
	return &tracker{open: make(map[string]Entry), now: time.Now}
}

func (t *tracker) trackCreate(path, name string) {
	t.open[path] = Entry{Path: path, Name: name, CreatedAt: t.now()}
}

func (t *tracker) trackRelease(path string) {
	delete(t.open, path)
}

func (t *tracker) pending() []Entry {
	entries := make([]Entry, 0, len(t.open))
	for _, e := range t.open {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}
