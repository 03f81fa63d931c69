package hpack

import "math"

// bucketCount stays small on purpose: the dynamic table tops out at a few
// dozen entries under the default 4096 size limit.
const bucketCount = 16

// dynamicTable is the encoder's view of the per-connection dynamic table.
// head is a sentinel: head.next is the oldest live entry and the eviction
// victim, head.prev is the newest insertion. Every live entry is also
// chained into exactly one hash bucket by name hash.
type dynamicTable struct {
	head    tableEntry
	buckets [bucketCount]*tableEntry
	pool    entryPool
	size    uint32
	maxSize uint32
}

// The sentinel seq starts at MaxInt32 so the first insertion gets
// MaxInt32-1 and wireIndex of the newest entry lands on STATIC_TABLE_SIZE+1.
// Sequences only wrap after ~2^31 insertions on one connection, which is
// unreachable in practice.
func (t *dynamicTable) init(maxSize uint32) {
	t.head.seq = math.MaxInt32
	t.head.prev = &t.head
	t.head.next = &t.head
	t.maxSize = maxSize
}

// hashName is FNV-1a over the name octets. Only intra-instance determinism
// matters; equal names must collide on purpose.
func hashName(name string) uint32 {
	hash := uint32(2166136261)
	for i := 0; i < len(name); i++ {
		hash ^= uint32(name[i])
		hash *= 16777619
	}
	return hash
}

func bucketOf(hash uint32) int {
	return int(hash & (bucketCount - 1))
}

// lookupNameAndValue returns the live entry matching both name and value
// byte-exact, or nil. The hash and value comparisons reject mismatches
// before the name is touched.
func (t *dynamicTable) lookupNameAndValue(name string, value string, hash uint32) *tableEntry {
	for entry := t.buckets[bucketOf(hash)]; entry != nil; entry = entry.nextHash {
		if entry.hash == hash && entry.value == value && entry.name == name {
			return entry
		}
	}
	return nil
}

// lookupName returns the wire index of some live entry with a matching name.
// The first match in the bucket chain wins, which is the most recently
// inserted of the colliding names.
func (t *dynamicTable) lookupName(name string, hash uint32) (int, bool) {
	for entry := t.buckets[bucketOf(hash)]; entry != nil; entry = entry.nextHash {
		if entry.hash == hash && entry.name == name {
			return t.wireIndex(entry), true
		}
	}
	return 0, false
}

// wireIndex numbers the newest live entry STATIC_TABLE_SIZE+1 and counts up
// toward the oldest.
func (t *dynamicTable) wireIndex(entry *tableEntry) int {
	return int(entry.seq-t.head.prev.seq) + 1 + STATIC_TABLE_SIZE
}

// ensureCapacity evicts from the oldest end until headerSize fits. The
// caller must already have checked headerSize <= maxSize.
func (t *dynamicTable) ensureCapacity(headerSize uint32) {
	for t.maxSize-t.size < headerSize {
		t.evictOldest()
	}
}

// insert places a new entry as the newest. Capacity must have been reserved
// with ensureCapacity in the same encoding step.
func (t *dynamicTable) insert(name string, value string, hash uint32, headerSize uint32) {
	entry := t.pool.pop()
	if entry == nil {
		entry = new(tableEntry)
	}
	entry.name = name
	entry.value = value
	entry.hash = hash
	entry.size = headerSize
	entry.seq = t.head.prev.seq - 1

	bucket := bucketOf(hash)
	entry.nextHash = t.buckets[bucket]
	t.buckets[bucket] = entry

	entry.prev = t.head.prev
	entry.next = &t.head
	t.head.prev.next = entry
	t.head.prev = entry

	t.size += headerSize
}

func (t *dynamicTable) evictOldest() {
	victim := t.head.next
	if victim == &t.head {
		return
	}

	victim.prev.next = victim.next
	victim.next.prev = victim.prev

	bucket := bucketOf(victim.hash)
	if t.buckets[bucket] == victim {
		t.buckets[bucket] = victim.nextHash
	} else {
		for entry := t.buckets[bucket]; entry != nil; entry = entry.nextHash {
			if entry.nextHash == victim {
				entry.nextHash = victim.nextHash
				break
			}
		}
	}

	t.size -= victim.size
	t.pool.push(victim)
}

// setMaxSize shrinks or grows the size limit, evicting oldest entries until
// the current contents fit again.
func (t *dynamicTable) setMaxSize(maxSize uint32) {
	t.maxSize = maxSize
	for t.size > t.maxSize {
		t.evictOldest()
	}
}
