// Package journal implements the append-only recovery log the engine
// writes every admitted command to before mutating state.
//
// Every frame has the wire format:
//
//	[seq:u64][len:u32][payload][crc32:u32]
//
// seq and len are big-endian. payload is the gob encoding of either an
// inbound command or an outbound event, tagged by a one-byte Kind
// prefix baked into the payload itself so Replay can tell which to
// decode into before looking at the bytes. crc32 is computed over the
// payload bytes only, a checksum of the actual wire bytes rather than
// of a %v-formatted string: a string format does not round-trip a gob
// stream byte-for-byte (pointer addresses and map iteration order can
// leak into it), so it would not reliably catch a corrupted frame.
//
// Replay discards outbound frames entirely: outbound events are
// re-emitted identically when the inbound commands that produced them
// are replayed, so only inbound frames drive recovery.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/google/uuid"
)

// fileMagic prefixes a fresh journal file, followed by a 16-byte session
// id, so two replay segments produced by different process runs can be
// told apart (the recovery log itself is silent on this otherwise).
var fileMagic = [4]byte{'M', 'C', 'J', 'L'}

// FrameKind distinguishes an inbound command frame from an outbound
// event frame within the same journal file.
type FrameKind uint8

const (
	FrameInbound FrameKind = iota + 1
	FrameOutbound
)

// Writer appends frames to a journal file.
type Writer struct {
	file      *os.File
	seq       uint64
	SessionID uuid.UUID
}

// NewWriter opens (or creates) a journal file for appending. A brand new
// file gets a fresh session id header; an existing file is appended to
// as-is. It does not read existing frames; callers that need the next
// sequence number after a restart should run Replay first and call
// SeedSequence with the highest sequence number observed.
func NewWriter(path string) (*Writer, error) {
	existing, statErr := os.Stat(path)
	isFresh := statErr != nil || existing.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	w := &Writer{file: f}
	if isFresh {
		w.SessionID = uuid.New()
		sessionBytes, _ := w.SessionID.MarshalBinary()
		if _, err := f.Write(fileMagic[:]); err != nil {
			return nil, fmt.Errorf("journal: write header magic: %w", err)
		}
		if _, err := f.Write(sessionBytes); err != nil {
			return nil, fmt.Errorf("journal: write header session id: %w", err)
		}
	}
	return w, nil
}

// SeedSequence sets the next sequence number to emit, used after replay
// to continue numbering from where a prior run left off.
func (w *Writer) SeedSequence(lastSeq uint64) {
	w.seq = lastSeq
}

// AppendInbound journals an admitted command before any state mutation.
// The caller passes a gob-encodable command value; Writer does not need
// to know its Go type.
func (w *Writer) AppendInbound(cmd any) (uint64, error) {
	return w.append(FrameInbound, cmd)
}

// AppendOutbound journals an emitted event after mutation.
func (w *Writer) AppendOutbound(evt any) (uint64, error) {
	return w.append(FrameOutbound, evt)
}

func (w *Writer) append(kind FrameKind, payload any) (uint64, error) {
	var buf bytes.Buffer
	if err := buf.WriteByte(byte(kind)); err != nil {
		return 0, err
	}
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return 0, fmt.Errorf("journal: encode frame: %w", err)
	}
	payloadBytes := buf.Bytes()

	w.seq++
	seq := w.seq

	var header [12]byte
	binary.BigEndian.PutUint64(header[0:8], seq)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(payloadBytes)))

	checksum := crc32.ChecksumIEEE(payloadBytes)
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], checksum)

	if _, err := w.file.Write(header[:]); err != nil {
		return 0, fmt.Errorf("journal: write header: %w", err)
	}
	if _, err := w.file.Write(payloadBytes); err != nil {
		return 0, fmt.Errorf("journal: write payload: %w", err)
	}
	if _, err := w.file.Write(trailer[:]); err != nil {
		return 0, fmt.Errorf("journal: write trailer: %w", err)
	}

	return seq, nil
}

// Sync fsyncs the journal file to disk.
func (w *Writer) Sync() error {
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.file.Close()
}

// Frame is one decoded journal record, handed to the Replay callback.
type Frame struct {
	Seq  uint64
	Kind FrameKind
	// decode backs Decode: it gob-decodes the frame's payload into the
	// caller-supplied destination pointer.
	decode func(dst any) error
}

// Decode unmarshals this frame's payload into dst, a pointer to the
// concrete command or event type the caller expects for this Kind.
func (f Frame) Decode(dst any) error {
	return f.decode(dst)
}

// Replay reads every complete frame in path, verifying each CRC32 and
// detecting sequence gaps, calling handler for each in order. A partial
// trailing frame (a crash mid-write) is treated as the expected end of
// the log, not an error: the frame before it is the last durable state.
func Replay(path string, handler func(Frame) error) (lastSeq uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer f.Close()

	var header [20]byte
	n, err := io.ReadFull(f, header[:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil // empty or header-only file, no frames
		}
		return 0, fmt.Errorf("journal: read header: %w", err)
	}
	if n == 20 && header[0] == fileMagic[0] && header[1] == fileMagic[1] &&
		header[2] == fileMagic[2] && header[3] == fileMagic[3] {
		// recognized header, frames follow
	} else {
		return 0, fmt.Errorf("journal: %s is not a recognized journal file", path)
	}

	r := &frameReader{r: f}

	for {
		frame, raw, ok, err := r.next()
		if err != nil {
			return lastSeq, err
		}
		if !ok {
			break
		}

		if lastSeq != 0 && frame.Seq != lastSeq+1 {
			return lastSeq, fmt.Errorf("journal: sequence gap, expected %d got %d", lastSeq+1, frame.Seq)
		}
		lastSeq = frame.Seq

		frame.decode = func(dst any) error {
			return gob.NewDecoder(bytes.NewReader(raw[1:])).Decode(dst)
		}

		if err := handler(frame); err != nil {
			return lastSeq, fmt.Errorf("journal: handler at seq %d: %w", frame.Seq, err)
		}
	}

	return lastSeq, nil
}

type frameReader struct {
	r io.Reader
}

// next reads one frame. ok is false at a clean EOF (no more complete
// frames), including a truncated trailing header/payload/trailer from a
// crash mid-write, which is silently accepted as the log's true end.
func (fr *frameReader) next() (frame Frame, payload []byte, ok bool, err error) {
	var header [12]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, nil, false, nil
		}
		return Frame{}, nil, false, err
	}
	seq := binary.BigEndian.Uint64(header[0:8])
	length := binary.BigEndian.Uint32(header[8:12])

	payload = make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, nil, false, nil
		}
		return Frame{}, nil, false, err
	}

	var trailer [4]byte
	if _, err := io.ReadFull(fr.r, trailer[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, nil, false, nil
		}
		return Frame{}, nil, false, err
	}
	wantCRC := binary.BigEndian.Uint32(trailer[:])
	gotCRC := crc32.ChecksumIEEE(payload)
	if wantCRC != gotCRC {
		return Frame{}, nil, false, fmt.Errorf("journal: crc mismatch at seq %d", seq)
	}

	if len(payload) == 0 {
		return Frame{}, nil, false, fmt.Errorf("journal: empty payload at seq %d", seq)
	}
	kind := FrameKind(payload[0])

	return Frame{Seq: seq, Kind: kind}, payload, true, nil
}
