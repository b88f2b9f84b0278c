package jsoncodec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type testPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ID: 42, Name: "axon"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := testPayload{ID: 7, Name: "stream"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded testPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}

func TestDecodeLimited(t *testing.T) {
	var out testPayload
	if err := DecodeLimited(strings.NewReader(`{"id":1,"name":"a"}`), 0, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.ID != 1 || out.Name != "a" {
		t.Fatalf("unexpected payload %#v", out)
	}

	err := DecodeLimited(strings.NewReader(`{"id":1,"name":"abcdef"}`), 8, &out)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}

	err = DecodeLimited(strings.NewReader(""), 0, &out)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF for empty body, got %v", err)
	}

	if err := DecodeLimited(strings.NewReader(`{"id":`), 0, &out); err == nil {
		t.Fatal("expected syntax error")
	}
}
