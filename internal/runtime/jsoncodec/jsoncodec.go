// Package jsoncodec is the JSON codec used for HTTP request and response bodies.
package jsoncodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// DefaultBodyLimit caps request bodies read through DecodeLimited.
const DefaultBodyLimit int64 = 1 << 20

// ErrBodyTooLarge is returned by DecodeLimited when the input exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// DecodeLimited reads at most limit bytes from r and unmarshals them into v.
// A non-positive limit falls back to DefaultBodyLimit.
func DecodeLimited(r io.Reader, limit int64, v any) error {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	if len(data) == 0 {
		return io.ErrUnexpectedEOF
	}
	return Unmarshal(data, v)
}
