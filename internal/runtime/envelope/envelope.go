// Package envelope holds the message value exchanged with the bus and its
// binary encoding.
//
// On the wire a message is a protobuf-compatible record: field 1 carries the
// payload, each field 2 carries one metadata frame (field 1 id, field 2 data).
// Frames are written in order and decoded in order.
package envelope

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
)

// ContentType is stamped on bus messages carrying an encoded envelope.
const ContentType = "application/x-axon-envelope"

const (
	fieldPayload protowire.Number = 1
	fieldFrame   protowire.Number = 2

	fieldFrameID   protowire.Number = 1
	fieldFrameData protowire.Number = 2
)

// Frame is a named metadata side-channel attached to a message.
type Frame struct {
	ID   string
	Data []byte
}

// Message is an immutable payload plus its ordered metadata frames.
type Message struct {
	payload []byte
	frames  []Frame
}

// New copies payload and frames into a Message.
func New(payload []byte, frames ...Frame) Message {
	return Message{
		payload: cloneBytes(payload),
		frames:  cloneFrames(frames),
	}
}

// Payload returns a copy of the message payload.
func (m Message) Payload() []byte {
	return cloneBytes(m.payload)
}

// Frames returns a copy of the metadata frames in order.
func (m Message) Frames() []Frame {
	return cloneFrames(m.frames)
}

// Size is the encoded size of the message in bytes.
func (m Message) Size() int {
	size := protowire.SizeTag(fieldPayload) + protowire.SizeBytes(len(m.payload))
	for _, f := range m.frames {
		size += protowire.SizeTag(fieldFrame) + protowire.SizeBytes(frameSize(f))
	}
	return size
}

// Marshal encodes m.
func Marshal(m Message) []byte {
	b := make([]byte, 0, m.Size())
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, m.payload)
	for _, f := range m.frames {
		b = protowire.AppendTag(b, fieldFrame, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(frameSize(f)))
		b = protowire.AppendTag(b, fieldFrameID, protowire.BytesType)
		b = protowire.AppendString(b, f.ID)
		b = protowire.AppendTag(b, fieldFrameData, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Data)
	}
	return b
}

// Unmarshal decodes an envelope produced by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, malformed("tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, malformed("payload", n)
			}
			m.payload = cloneBytes(v)
			b = b[n:]
		case num == fieldFrame && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, malformed("frame", n)
			}
			f, err := unmarshalFrame(v)
			if err != nil {
				return Message{}, err
			}
			m.frames = append(m.frames, f)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, malformed("unknown field", n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func unmarshalFrame(b []byte) (Frame, error) {
	var f Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Frame{}, malformed("frame tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldFrameID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Frame{}, malformed("frame id", n)
			}
			f.ID = v
			b = b[n:]
		case num == fieldFrameData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Frame{}, malformed("frame data", n)
			}
			f.Data = cloneBytes(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Frame{}, malformed("frame field", n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

func frameSize(f Frame) int {
	return protowire.SizeTag(fieldFrameID) + protowire.SizeBytes(len(f.ID)) +
		protowire.SizeTag(fieldFrameData) + protowire.SizeBytes(len(f.Data))
}

func malformed(part string, n int) error {
	return fmt.Errorf("%w: %s: %v", errspkg.ErrMalformedEnvelope, part, protowire.ParseError(n))
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneFrames(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = Frame{ID: f.ID, Data: cloneBytes(f.Data)}
	}
	return out
}
