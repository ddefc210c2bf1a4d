// Package txn carries the concurrency and resource-tracking stub spec.md
// §5 and §9's Open Question on durability call for: a single global
// lock serializing statement execution, and a WAL that assigns log
// sequence numbers without ever replaying them. The LSN-stamped,
// CRC-guarded record shape is grounded on the teacher's pkg/wal/entry.go
// Entry encoding, trimmed to the append-only stub this engine needs
// (see DESIGN.md) — no recovery, no checkpointing, no reader.
package txn

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/JerryiaL/minisql/pkg/errs"
)

// LockManager serializes statement execution with one global lock,
// matching spec.md §5's "single-threaded per database" scheduling
// model. It is not a per-row or per-table lock table: latching at
// that granularity is the buffer pool's and B+-tree's job.
type LockManager struct {
	mu sync.Mutex
}

// NewLockManager returns an unlocked LockManager.
func NewLockManager() *LockManager { return &LockManager{} }

// Lock acquires the statement-execution lock.
func (lm *LockManager) Lock() { lm.mu.Lock() }

// Unlock releases the statement-execution lock.
func (lm *LockManager) Unlock() { lm.mu.Unlock() }

// recordHeaderSize is LSN(8) + OpType(1) + reserved(3) + length(4).
const recordHeaderSize = 16

// OpType tags what kind of durable event a Record stamps.
type OpType byte

const (
	OpCreateTable OpType = 1
	OpDropTable   OpType = 2
	OpInsert      OpType = 3
	OpDelete      OpType = 4
	OpUpdate      OpType = 5
)

// Record is one WAL-stub entry: an LSN stamp and an opaque payload,
// CRC-guarded the way the teacher's Entry is. There is no redo/undo
// payload interpretation — nothing in this package replays records.
type Record struct {
	LSN     uint64
	Op      OpType
	Payload []byte
}

// Encode serializes r as header + payload + CRC32, matching the
// teacher's Entry.Encode layout minus the transaction-id and
// timestamp fields this stub does not track.
func (r Record) Encode() []byte {
	buf := make([]byte, recordHeaderSize+len(r.Payload)+4)
	binary.LittleEndian.PutUint64(buf[0:8], r.LSN)
	buf[8] = byte(r.Op)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(r.Payload)))
	copy(buf[recordHeaderSize:], r.Payload)
	crc := crc32.ChecksumIEEE(buf[:recordHeaderSize+len(r.Payload)])
	binary.LittleEndian.PutUint32(buf[recordHeaderSize+len(r.Payload):], crc)
	return buf
}

// DecodeRecord is the inverse of Encode, validating the CRC32 trailer.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) < recordHeaderSize+4 {
		return Record{}, errs.New("txn.DecodeRecord", errs.CorruptMetadata)
	}
	payloadLen := binary.LittleEndian.Uint32(data[12:16])
	end := recordHeaderSize + int(payloadLen)
	if len(data) < end+4 {
		return Record{}, errs.New("txn.DecodeRecord", errs.CorruptMetadata)
	}
	stored := binary.LittleEndian.Uint32(data[end:])
	computed := crc32.ChecksumIEEE(data[:end])
	if stored != computed {
		return Record{}, errs.New("txn.DecodeRecord", errs.CorruptMetadata)
	}
	payload := append([]byte(nil), data[recordHeaderSize:end]...)
	return Record{
		LSN:     binary.LittleEndian.Uint64(data[0:8]),
		Op:      OpType(data[8]),
		Payload: payload,
	}, nil
}

// WAL is a log-sequence-number allocator only. AppendStub assigns the
// next LSN and returns the Record (Record.Encode gives the encoded,
// CRC-guarded form), but never writes it to stable storage or replays
// it: spec.md's Non-goals exclude crash recovery, and the Open
// Question on durability is resolved as "track LSNs, do not persist
// them" (see DESIGN.md).
type WAL struct {
	mu     sync.Mutex
	nextLSN uint64
}

// NewWAL returns a WAL stub with LSNs starting at 1.
func NewWAL() *WAL { return &WAL{nextLSN: 1} }

// AppendStub stamps op/payload with the next LSN and returns the
// record, unencoded, without persisting it.
func (w *WAL) AppendStub(op OpType, payload []byte) Record {
	w.mu.Lock()
	lsn := w.nextLSN
	w.nextLSN++
	w.mu.Unlock()
	return Record{LSN: lsn, Op: op, Payload: payload}
}
