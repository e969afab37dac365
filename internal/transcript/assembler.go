package transcript

import (
	"sort"
	"sync"
)

// Assembler buffers fragments that may complete in any order and combines
// them strictly by chunk index
type Assembler struct {
	mu        sync.Mutex
	fragments map[int]Fragment
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{fragments: make(map[int]Fragment)}
}

// Add records a fragment. A second fragment for the same index is ignored.
func (a *Assembler) Add(f Fragment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.fragments[f.Index]; exists {
		return
	}
	a.fragments[f.Index] = f
}

// Len returns the number of buffered fragments
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fragments)
}

// Transcript returns the fragments in index order together with their
// joined text
func (a *Assembler) Transcript() *Transcript {
	a.mu.Lock()
	fragments := make([]Fragment, 0, len(a.fragments))
	for _, f := range a.fragments {
		fragments = append(fragments, f)
	}
	a.mu.Unlock()

	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].Index < fragments[j].Index
	})

	t := &Transcript{
		Fragments: fragments,
		Text:      Join(fragments),
	}
	for _, f := range fragments {
		if f.Failed {
			t.Partial = true
			break
		}
	}
	return t
}
