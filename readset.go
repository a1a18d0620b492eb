package eaterss

import "golang.org/x/exp/maps"

// ReadSet tracks which item links have been opened during this session. It is
// memory only and is emptied whenever the feed it describes is replaced.
type ReadSet struct {
	links map[string]bool
}

func NewReadSet() *ReadSet {
	return &ReadSet{
		links: map[string]bool{},
	}
}

func (r *ReadSet) MarkRead(link string) {
	if link == "" {
		return
	}
	r.links[link] = true
}

func (r *ReadSet) Read(link string) bool {
	return r.links[link]
}

func (r *ReadSet) Len() int {
	return len(r.links)
}

func (r *ReadSet) Clear() {
	maps.Clear(r.links)
}
