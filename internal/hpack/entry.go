package hpack

// tableEntry is one live dynamic table binding. The list and bucket links
// are embedded so an entry is a single allocation; nextHash doubles as the
// recycle stack link while the entry is detached.
type tableEntry struct {
	name  string
	value string
	hash  uint32
	size  uint32
	seq   int32

	nextHash *tableEntry
	prev     *tableEntry
	next     *tableEntry
}

// entryPool keeps evicted entries for reuse so steady insert/evict traffic
// does not churn the allocator. Entries on the pool are fully detached.
type entryPool struct {
	top *tableEntry
}

func (p *entryPool) push(entry *tableEntry) {
	entry.name = ""
	entry.value = ""
	entry.hash = 0
	entry.size = 0
	entry.seq = 0
	entry.prev = nil
	entry.next = nil
	entry.nextHash = p.top
	p.top = entry
}

func (p *entryPool) pop() *tableEntry {
	entry := p.top
	if entry != nil {
		p.top = entry.nextHash
		entry.nextHash = nil
	}
	return entry
}
