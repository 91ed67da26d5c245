package flatlog

import (
	"encoding/binary"
	"testing"

	. "github.com/fulldump/biff"
)

// framedRecord builds a payload of n bytes carrying fileID at [4..8) and
// wraps it with a u32le size prefix, mirroring the wire format in use by
// IngestBatch/IngestOneFramed.
func framedRecord(fileID string, n int) []byte {
	payload := make([]byte, n)
	copy(payload[4:8], fileID)
	frame := make([]byte, 4+n)
	binary.LittleEndian.PutUint32(frame, uint32(n))
	copy(frame[4:], payload)
	return frame
}

func TestIngestBatch_FramingRoundTrip(t *testing.T) {
	batch := append(append(framedRecord("USER", 64), framedRecord("USER", 72)...), framedRecord("USER", 80)...)
	AssertEqual(len(batch), 228)

	var seqs []uint64
	log := New(0, func(fileID [4]byte, payload []byte, sequence uint64, offset uint64) {
		seqs = append(seqs, sequence)
	})

	consumed, processed := log.IngestBatch(batch)
	AssertEqual(consumed, 228)
	AssertEqual(processed, 3)
	AssertEqual(len(seqs), 3)
	AssertEqual(seqs[0], uint64(1))
	AssertEqual(seqs[1], uint64(2))
	AssertEqual(seqs[2], uint64(3))

	var userID [4]byte
	copy(userID[:], "USER")
	AssertEqual(log.RecordCountByFileID(userID), 3)
}

func TestIngestBatch_PartialFrame(t *testing.T) {
	log := New(0, nil)
	full := framedRecord("USER", 64)

	consumed, processed := log.IngestBatch(full[:3])
	AssertEqual(consumed, 0)
	AssertEqual(processed, 0)

	consumed, processed = log.IngestBatch(full[:4])
	AssertEqual(consumed, 0)
	AssertEqual(processed, 0)

	consumed, processed = log.IngestBatch(full)
	AssertEqual(consumed, 64+4)
	AssertEqual(processed, 1)
}

func TestIngestBatch_ByteAtATimeDrip(t *testing.T) {
	batch := append(append(framedRecord("USER", 10), framedRecord("POST", 20)...), framedRecord("USER", 5)...)

	var sequencesOneShot []uint64
	oneShot := New(0, func(fileID [4]byte, payload []byte, sequence uint64, offset uint64) {
		sequencesOneShot = append(sequencesOneShot, sequence)
	})
	oneShot.IngestBatch(batch)

	var sequencesDripped []uint64
	dripped := New(0, func(fileID [4]byte, payload []byte, sequence uint64, offset uint64) {
		sequencesDripped = append(sequencesDripped, sequence)
	})

	var pending []byte
	for i := 0; i < len(batch); i++ {
		pending = append(pending, batch[i])
		consumed, _ := dripped.IngestBatch(pending)
		pending = pending[consumed:]
	}

	AssertEqual(len(sequencesDripped), len(sequencesOneShot))
	for i := range sequencesOneShot {
		AssertEqual(sequencesDripped[i], sequencesOneShot[i])
	}
	AssertEqual(oneShot.ExportData(), dripped.ExportData())
}

func TestIngestOneFramed_MalformedSize(t *testing.T) {
	log := New(0, nil)
	bad := framedRecord("USER", 64)
	bad = bad[:len(bad)-1] // truncate payload without updating size prefix

	_, err := log.IngestOneFramed(bad)
	AssertNotNil(err)
}

func TestReadBySequence_RoundTrip(t *testing.T) {
	log := New(0, nil)
	seq := log.IngestRaw(framedRecordPayload("USER", 16))

	rec, ok := log.ReadBySequence(seq)
	AssertTrue(ok)
	AssertEqual(rec.Sequence, seq)

	again, ok := log.ReadBySequence(rec.Sequence)
	AssertTrue(ok)
	AssertEqual(again.Data, rec.Data)
}

// framedRecordPayload builds just the payload (no size prefix), for IngestRaw.
func framedRecordPayload(fileID string, n int) []byte {
	payload := make([]byte, n)
	copy(payload[4:8], fileID)
	return payload
}

func TestIterateByFileID_InsertionOrder(t *testing.T) {
	log := New(0, nil)
	log.IngestRaw(framedRecordPayload("USER", 8))
	log.IngestRaw(framedRecordPayload("POST", 8))
	log.IngestRaw(framedRecordPayload("USER", 8))

	var userID [4]byte
	copy(userID[:], "USER")

	var sequences []uint64
	log.IterateByFileID(userID, func(ref Ref, payload []byte) bool {
		sequences = append(sequences, ref.Sequence)
		return true
	})
	AssertEqual(len(sequences), 2)
	AssertEqual(sequences[0], uint64(1))
	AssertEqual(sequences[1], uint64(3))
}

func TestExportAndLoadAndRebuild_Identity(t *testing.T) {
	log := New(0, nil)
	log.IngestRaw(framedRecordPayload("USER", 8))
	log.IngestRaw(framedRecordPayload("POST", 12))
	log.IngestRaw(framedRecordPayload("USER", 20))

	exported := log.ExportData()

	fresh := New(0, nil)
	processed, err := fresh.LoadAndRebuild(exported)
	AssertNil(err)
	AssertEqual(processed, 3)
	AssertEqual(fresh.ExportData(), exported)
	AssertEqual(fresh.RecordCount(), log.RecordCount())
}
