package engine

import "sort"

// wordSize is the alignment granularity for payload allocations,
// matching the C library's `sizeof(unsigned)` rounding.
const wordSize = 8

// payloadBucket groups free payload-arena offsets of one exact size,
// the Go-native equivalent of a C sibling chain hanging off a chunk
// of a given size.
type payloadBucket struct {
	size    uint32
	offsets []uint32 // LIFO: offsets[len-1] is handed out first
}

// payloadArena is the pointer-free byte region events carve their
// payloads from: a bump allocator over the unused tail plus a
// size-sorted free list.
type payloadArena struct {
	data      []byte
	cursor    uint32
	remaining uint32
	buckets   []payloadBucket // sorted ascending by size
}

func newPayloadArena(buf []byte) *payloadArena {
	return &payloadArena{
		data:      buf,
		cursor:    0,
		remaining: uint32(len(buf)),
	}
}

func roundUp(size uint32) uint32 {
	if size < wordSize {
		size = wordSize
	}
	return (size + wordSize - 1) &^ (wordSize - 1)
}

// alloc returns the offset of a byte range of at least `size` bytes,
// or ok=false if the arena cannot satisfy the request.
func (a *payloadArena) alloc(size uint32) (offset uint32, allocSize uint32, reused bool, ok bool) {
	size = roundUp(size)

	// First-fit walk over buckets sorted by size ascending, mirroring
	// equeue_mem_alloc's "first node with size >= requested" scan.
	i := sort.Search(len(a.buckets), func(i int) bool {
		return a.buckets[i].size >= size
	})
	if i < len(a.buckets) {
		b := &a.buckets[i]
		n := len(b.offsets)
		off := b.offsets[n-1]
		b.offsets = b.offsets[:n-1]
		allocSize = b.size
		if len(b.offsets) == 0 {
			a.buckets = append(a.buckets[:i], a.buckets[i+1:]...)
		}
		return off, allocSize, true, true
	}

	if a.remaining >= size {
		off := a.cursor
		a.cursor += size
		a.remaining -= size
		return off, size, false, true
	}

	return 0, 0, false, false
}

// dealloc returns a previously allocated range to the free list,
// splicing into an existing same-size bucket or inserting a new one
// in sorted position, mirroring equeue_mem_dealloc.
func (a *payloadArena) dealloc(offset, size uint32) {
	i := sort.Search(len(a.buckets), func(i int) bool {
		return a.buckets[i].size >= size
	})
	if i < len(a.buckets) && a.buckets[i].size == size {
		a.buckets[i].offsets = append(a.buckets[i].offsets, offset)
		return
	}
	nb := payloadBucket{size: size, offsets: []uint32{offset}}
	a.buckets = append(a.buckets, payloadBucket{})
	copy(a.buckets[i+1:], a.buckets[i:])
	a.buckets[i] = nb
}

func (a *payloadArena) bytes(offset, length uint32) []byte {
	return a.data[offset : offset+length]
}
