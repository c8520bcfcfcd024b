package asm

import (
	"bytes"
	"encoding/binary"
)

// DataID is a stable index into the data section.
type DataID int

// EntryKind tags a data-section entry for the wire format.
type EntryKind uint8

const (
	EntryWord EntryKind = iota
	EntryCollection
	EntryByteArray
	EntryB256
)

// Entry is one word-aligned literal constant: a single word, a 256-bit
// value, a byte array (strings), or a collection of sub-entries
// (aggregate literals).
type Entry struct {
	Kind  EntryKind
	Word  uint64
	Bytes []byte
	Subs  []Entry
}

func NewWordEntry(w uint64) Entry      { return Entry{Kind: EntryWord, Word: w} }
func NewB256Entry(v [32]byte) Entry    { return Entry{Kind: EntryB256, Bytes: v[:]} }
func NewByteArrayEntry(b []byte) Entry { return Entry{Kind: EntryByteArray, Bytes: b} }

// HasCopyType reports whether the entry fits one machine word and loads
// directly rather than via pointer indirection.
func (e Entry) HasCopyType() bool {
	return e.Kind == EntryWord
}

func (e Entry) equal(o Entry) bool {
	if e.Kind != o.Kind || e.Word != o.Word || !bytes.Equal(e.Bytes, o.Bytes) || len(e.Subs) != len(o.Subs) {
		return false
	}
	for i := range e.Subs {
		if !e.Subs[i].equal(o.Subs[i]) {
			return false
		}
	}
	return true
}

// payload renders the entry's raw bytes, zero-padded to word alignment.
func (e Entry) payload() []byte {
	switch e.Kind {
	case EntryWord:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], e.Word)
		return buf[:]
	case EntryB256, EntryByteArray:
		out := append([]byte{}, e.Bytes...)
		for len(out)%8 != 0 {
			out = append(out, 0)
		}
		return out
	case EntryCollection:
		var out []byte
		for _, s := range e.Subs {
			out = append(out, s.payload()...)
		}
		return out
	}
	return nil
}

// DataSection holds deduplicated literal constants. Insertion order is
// layout order; deduplication is structural.
type DataSection struct {
	entries []Entry
}

// Insert deduplicates by structural equality and returns a stable DataID.
func (ds *DataSection) Insert(e Entry) DataID {
	for i, existing := range ds.entries {
		if existing.equal(e) {
			return DataID(i)
		}
	}
	ds.entries = append(ds.entries, e)
	return DataID(len(ds.entries) - 1)
}

// HasCopyType reports whether the identified entry loads as a single word.
func (ds *DataSection) HasCopyType(id DataID) bool {
	return ds.entries[int(id)].HasCopyType()
}

// Len reports the number of entries.
func (ds *DataSection) Len() int { return len(ds.entries) }

// OffsetWords computes the word offset of an entry's payload from the
// start of the data section, accounting for each entry's (tag, length)
// header words.
func (ds *DataSection) OffsetWords(id DataID) uint64 {
	var off uint64
	for i := 0; i < int(id); i++ {
		off += 2 // tag word + length word
		off += uint64(len(ds.entries[i].payload())) / 8
	}
	return off + 2 // past the target's own header
}

// Serialize renders the section as (tag, length, payload) entries, each
// field a little-endian 64-bit word, length counted in payload bytes.
func (ds *DataSection) Serialize() []byte {
	var out []byte
	var word [8]byte
	for _, e := range ds.entries {
		binary.LittleEndian.PutUint64(word[:], uint64(e.Kind))
		out = append(out, word[:]...)
		payload := e.payload()
		binary.LittleEndian.PutUint64(word[:], uint64(len(payload)))
		out = append(out, word[:]...)
		out = append(out, payload...)
	}
	return out
}
