// Package flatlog implements the append-only streaming store: a contiguous
// byte buffer of size-prefixed records plus the offset/sequence/file-id
// bookkeeping needed to route and re-read them.
package flatlog

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when a framed-record call is given a size
// prefix inconsistent with the bytes actually supplied.
var ErrMalformedFrame = errors.New("flatlog: malformed frame")

const frameHeaderSize = 4

const defaultInitialCapacity = 1 << 20 // 1 MiB

// Ref identifies a stored record without copying its bytes.
type Ref struct {
	Offset   uint64
	Sequence uint64
	Length   uint32
}

// StoredRecord is an owned copy of a record's payload plus its identity.
type StoredRecord struct {
	FileID   [4]byte
	Sequence uint64
	Offset   uint64
	Data     []byte
}

type fileBucket struct {
	refs []Ref
}

// Callback is invoked once per committed record, after the commit, with a
// pointer into the log's internal buffer valid only for the call's duration.
type Callback func(fileID [4]byte, payload []byte, sequence uint64, offset uint64)

// Log is a contiguous append-only byte buffer plus the maps needed to route
// and re-read the records inside it. The zero value is not usable; use New.
type Log struct {
	buf         []byte
	writeOffset int

	sequenceToOffset map[uint64]uint64
	offsetToSequence map[uint64]uint64
	fileIDToRecords  map[[4]byte]*fileBucket

	nextSequence uint64

	onCommit Callback
}

// New creates an empty Log. initialCapacity <= 0 uses the 1 MiB default.
// onCommit, if non-nil, is invoked exactly once per committed record.
func New(initialCapacity int, onCommit Callback) *Log {
	if initialCapacity <= 0 {
		initialCapacity = defaultInitialCapacity
	}
	return &Log{
		buf:              make([]byte, initialCapacity),
		sequenceToOffset: map[uint64]uint64{},
		offsetToSequence: map[uint64]uint64{},
		fileIDToRecords:  map[[4]byte]*fileBucket{},
		nextSequence:     1,
		onCommit:         onCommit,
	}
}

func extractFileID(payload []byte) [4]byte {
	var id [4]byte
	if len(payload) >= 8 {
		copy(id[:], payload[4:8])
	}
	return id
}

func (l *Log) ensureCapacity(n int) {
	need := l.writeOffset + n
	if need <= len(l.buf) {
		return
	}
	newCap := len(l.buf)
	if newCap == 0 {
		newCap = defaultInitialCapacity
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, l.buf[:l.writeOffset])
	l.buf = grown
}

// commit writes a single payload (already known-complete) as a frame and
// returns its assigned sequence number.
func (l *Log) commit(payload []byte) uint64 {
	frameLen := frameHeaderSize + len(payload)
	l.ensureCapacity(frameLen)

	offset := l.writeOffset
	binary.LittleEndian.PutUint32(l.buf[offset:], uint32(len(payload)))
	copy(l.buf[offset+frameHeaderSize:], payload)
	l.writeOffset += frameLen

	sequence := l.nextSequence
	l.nextSequence++

	l.sequenceToOffset[sequence] = uint64(offset)
	l.offsetToSequence[uint64(offset)] = sequence

	fileID := extractFileID(payload)
	bucket := l.fileIDToRecords[fileID]
	if bucket == nil {
		bucket = &fileBucket{}
		l.fileIDToRecords[fileID] = bucket
	}
	bucket.refs = append(bucket.refs, Ref{
		Offset:   uint64(offset),
		Sequence: sequence,
		Length:   uint32(len(payload)),
	})

	if l.onCommit != nil {
		// payload has just been copied into l.buf at the position just
		// committed; re-slice from there so the callback sees the buffer,
		// not the caller's original slice.
		start := offset + frameHeaderSize
		l.onCommit(fileID, l.buf[start:start+len(payload)], sequence, uint64(offset))
	}

	return sequence
}

// IngestBatch consumes zero or more complete frames from the front of data,
// stopping at the first incomplete frame. It reports exactly how many bytes
// were absorbed; callers retain the unconsumed tail and reappend it on the
// next chunk.
func (l *Log) IngestBatch(data []byte) (bytesConsumed int, recordsProcessed int) {
	pos := 0
	for {
		if len(data)-pos < frameHeaderSize {
			break
		}
		size := binary.LittleEndian.Uint32(data[pos:])
		need := frameHeaderSize + int(size)
		if len(data)-pos < need {
			break
		}
		payload := data[pos+frameHeaderSize : pos+need]
		l.commit(payload)
		pos += need
		recordsProcessed++
	}
	return pos, recordsProcessed
}

// IngestOneFramed consumes exactly one framed record. It fails with
// ErrMalformedFrame if the declared size is inconsistent with len(data).
func (l *Log) IngestOneFramed(data []byte) (uint64, error) {
	if len(data) < frameHeaderSize {
		return 0, fmt.Errorf("%w: frame shorter than header", ErrMalformedFrame)
	}
	size := binary.LittleEndian.Uint32(data)
	if len(data) != frameHeaderSize+int(size) {
		return 0, fmt.Errorf("%w: declared size %d, got %d bytes of payload", ErrMalformedFrame, size, len(data)-frameHeaderSize)
	}
	return l.commit(data[frameHeaderSize:]), nil
}

// IngestRaw wraps a size prefix around a bare payload and appends it.
func (l *Log) IngestRaw(payload []byte) uint64 {
	return l.commit(payload)
}

// LoadAndRebuild resets the log and replays blob as a stream, re-invoking
// the commit callback so dependent indexes reconstruct themselves.
func (l *Log) LoadAndRebuild(blob []byte) (recordsProcessed int, err error) {
	l.buf = make([]byte, defaultInitialCapacity)
	l.writeOffset = 0
	l.sequenceToOffset = map[uint64]uint64{}
	l.offsetToSequence = map[uint64]uint64{}
	l.fileIDToRecords = map[[4]byte]*fileBucket{}
	l.nextSequence = 1

	consumed, processed := l.IngestBatch(blob)
	if consumed != len(blob) {
		return processed, fmt.Errorf("%w: trailing %d unconsumed bytes in reload blob", ErrMalformedFrame, len(blob)-consumed)
	}
	return processed, nil
}

// ReadAtOffset returns a zero-copy pointer into the internal buffer, valid
// until the next Ingest* or LoadAndRebuild call.
func (l *Log) ReadAtOffset(offset uint64, length uint32) []byte {
	start := int(offset) + frameHeaderSize
	return l.buf[start : start+int(length)]
}

// ReadBySequence returns an owned copy of the record committed with the
// given sequence number.
func (l *Log) ReadBySequence(sequence uint64) (StoredRecord, bool) {
	offset, ok := l.sequenceToOffset[sequence]
	if !ok {
		return StoredRecord{}, false
	}
	start := int(offset) + frameHeaderSize
	size := binary.LittleEndian.Uint32(l.buf[offset:])
	data := make([]byte, size)
	copy(data, l.buf[start:start+int(size)])
	return StoredRecord{
		FileID:   extractFileID(data),
		Sequence: sequence,
		Offset:   offset,
		Data:     data,
	}, true
}

// HasSequence reports whether a record with the given sequence exists.
func (l *Log) HasSequence(sequence uint64) bool {
	_, ok := l.sequenceToOffset[sequence]
	return ok
}

// IterateByFileID visits each record of the given file-id in insertion
// order. callback receives the ref and the record's raw payload; it may
// halt iteration by returning false.
func (l *Log) IterateByFileID(fileID [4]byte, callback func(ref Ref, payload []byte) bool) {
	bucket := l.fileIDToRecords[fileID]
	if bucket == nil {
		return
	}
	for _, ref := range bucket.refs {
		payload := l.ReadAtOffset(ref.Offset, ref.Length)
		if !callback(ref, payload) {
			return
		}
	}
}

// IterateAllRefs visits every ref of the given file-id without resolving
// payloads, useful for callers that only need identity.
func (l *Log) IterateAllRefs(fileID [4]byte, callback func(ref Ref) bool) {
	bucket := l.fileIDToRecords[fileID]
	if bucket == nil {
		return
	}
	for _, ref := range bucket.refs {
		if !callback(ref) {
			return
		}
	}
}

// RecordByFileIDIndex gives O(1) random access within a file-id bucket.
func (l *Log) RecordByFileIDIndex(fileID [4]byte, i int) (Ref, bool) {
	bucket := l.fileIDToRecords[fileID]
	if bucket == nil || i < 0 || i >= len(bucket.refs) {
		return Ref{}, false
	}
	return bucket.refs[i], true
}

// RecordCountByFileID returns the number of records routed to fileID.
func (l *Log) RecordCountByFileID(fileID [4]byte) int {
	bucket := l.fileIDToRecords[fileID]
	if bucket == nil {
		return 0
	}
	return len(bucket.refs)
}

// ExportData returns the live prefix [0, writeOffset) as an opaque blob.
func (l *Log) ExportData() []byte {
	out := make([]byte, l.writeOffset)
	copy(out, l.buf[:l.writeOffset])
	return out
}

// RecordCount returns the total number of committed records.
func (l *Log) RecordCount() int {
	return len(l.sequenceToOffset)
}

// DataSize returns the number of live bytes in the buffer (writeOffset).
func (l *Log) DataSize() int {
	return l.writeOffset
}
