package object

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Stream frame kinds.
const (
	frameObject byte = 0x01
	frameEnd    byte = 0x02
)

// maxFrameLen bounds a single frame so a corrupt length cannot force a huge
// allocation.
const maxFrameLen = 1 << 30

// Writer writes objects as length-prefixed frames into a zstd stream.
// Frame format: [4 bytes big-endian length][1 byte kind][payload].
// An object payload is [1 byte id length][id][data]; the stream ends with an
// end frame carrying the object count.
type Writer struct {
	enc   *zstd.Encoder
	count uint32
}

// NewWriter starts an object stream on w.
func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return &Writer{enc: enc}, nil
}

func writeFrame(w io.Writer, kind byte, payload ...[]byte) error {
	n := 1
	for _, p := range payload {
		n += len(p)
	}
	if n > maxFrameLen {
		return fmt.Errorf("frame too large: %d bytes", n)
	}
	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(n))
	hdr[4] = kind
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	for _, p := range payload {
		if len(p) == 0 {
			continue
		}
		if _, err := w.Write(p); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// Write appends one object.
func (sw *Writer) Write(o Object) error {
	if len(o.OID) == 0 || len(o.OID) > 255 {
		return fmt.Errorf("write object: invalid id length %d", len(o.OID))
	}
	if err := writeFrame(sw.enc, frameObject, []byte{byte(len(o.OID))}, []byte(o.OID), o.Data); err != nil {
		return fmt.Errorf("write object %s: %w", o.OID, err)
	}
	sw.count++
	return nil
}

// Close writes the end frame and flushes the compressor. It does not close
// the underlying writer.
func (sw *Writer) Close() error {
	var cnt [4]byte
	binary.BigEndian.PutUint32(cnt[:], sw.count)
	if err := writeFrame(sw.enc, frameEnd, cnt[:]); err != nil {
		sw.enc.Close()
		return err
	}
	return sw.enc.Close()
}

// Reader reads objects written by Writer.
type Reader struct {
	dec   *zstd.Decoder
	count uint32
	done  bool
}

// NewReader opens an object stream.
func NewReader(r io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{dec: dec}, nil
}

// Read returns the next object, or io.EOF after the end frame.
func (sr *Reader) Read() (Object, error) {
	if sr.done {
		return Object{}, io.EOF
	}
	var hdr [5]byte
	if _, err := io.ReadFull(sr.dec, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Object{}, fmt.Errorf("object stream truncated: missing end frame")
		}
		return Object{}, fmt.Errorf("read frame header: %w", err)
	}
	frameLen := binary.BigEndian.Uint32(hdr[:4])
	if frameLen < 1 || frameLen > maxFrameLen {
		return Object{}, fmt.Errorf("invalid frame length %d", frameLen)
	}
	payload := make([]byte, frameLen-1)
	if _, err := io.ReadFull(sr.dec, payload); err != nil {
		return Object{}, fmt.Errorf("read frame: %w", err)
	}

	switch hdr[4] {
	case frameObject:
		if len(payload) < 1 || int(payload[0]) == 0 || len(payload) < 1+int(payload[0]) {
			return Object{}, fmt.Errorf("malformed object frame")
		}
		idLen := int(payload[0])
		sr.count++
		return Object{
			OID:  ID(payload[1 : 1+idLen]),
			Data: payload[1+idLen:],
		}, nil
	case frameEnd:
		if len(payload) != 4 {
			return Object{}, fmt.Errorf("malformed end frame")
		}
		if want := binary.BigEndian.Uint32(payload); want != sr.count {
			return Object{}, fmt.Errorf("object stream count mismatch: read %d, end frame says %d", sr.count, want)
		}
		sr.done = true
		return Object{}, io.EOF
	default:
		return Object{}, fmt.Errorf("unknown frame kind 0x%02x", hdr[4])
	}
}

// ReadAll drains the stream.
func (sr *Reader) ReadAll() ([]Object, error) {
	var out []Object
	for {
		o, err := sr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
}

// Close releases the decoder.
func (sr *Reader) Close() {
	sr.dec.Close()
}
