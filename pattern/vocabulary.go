package pattern

import "sync"

// IDAllocator hands out monotonically increasing token ids starting at 1.
type IDAllocator struct {
	mu   sync.Mutex
	next int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

func (a *IDAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// Peek returns the id the next call to Next will hand out.
func (a *IDAllocator) Peek() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Vocabulary maps distinct words to token ids.
type Vocabulary struct {
	mu    sync.RWMutex
	ids   *IDAllocator
	words map[string]int
	order []string
}

func NewVocabulary(ids *IDAllocator) *Vocabulary {
	if ids == nil {
		ids = NewIDAllocator()
	}
	return &Vocabulary{
		ids:   ids,
		words: make(map[string]int),
	}
}

// Intern returns the id for word, allocating one on first sight.
func (v *Vocabulary) Intern(word string) (id int, added bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id, ok := v.words[word]; ok {
		return id, false
	}
	id = v.ids.Next()
	v.words[word] = id
	v.order = append(v.order, word)
	return id, true
}

func (v *Vocabulary) Lookup(word string) (int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.words[word]
	return id, ok
}

func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.words)
}

// NextID exposes the allocator's upcoming id without consuming it.
func (v *Vocabulary) NextID() int {
	return v.ids.Peek()
}

// Words returns known words in first-seen order.
func (v *Vocabulary) Words() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}
