package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

func TestCloneDoesNotAlias(t *testing.T) {
	original := Metadata{"a": "1", "b": "2"}
	clone := original.Clone()
	clone["a"] = "changed"

	if original["a"] != "1" {
		t.Fatalf("expected original map to stay untouched, got %q", original["a"])
	}
	if len(clone) != len(original) {
		t.Fatalf("expected clone to have same size")
	}
}

func TestCloneNil(t *testing.T) {
	var m Metadata
	if cloned := m.Clone(); cloned == nil || len(cloned) != 0 {
		t.Fatalf("expected empty non-nil clone, got %#v", cloned)
	}
}

func TestTagPresence(t *testing.T) {
	untagged := Metadata{ContentTypeKey: "x"}
	if _, ok := untagged.Tag(); ok {
		t.Fatal("expected untagged metadata")
	}

	empty := untagged.WithTag("")
	tag, ok := empty.Tag()
	if !ok || tag != "" {
		t.Fatalf("expected empty tag to count as tagged, got %q %v", tag, ok)
	}
	if _, ok := untagged.Tag(); ok {
		t.Fatal("WithTag must not mutate the receiver")
	}
}

func TestApply(t *testing.T) {
	msg := message.NewMessage("uuid-1", []byte("body"))
	Metadata{ContentTypeKey: "application/test"}.WithTag("req-7").Apply(msg)

	if got := msg.Metadata.Get(TagKey); got != "req-7" {
		t.Fatalf("expected tag header, got %q", got)
	}
	if got := middleware.MessageCorrelationID(msg); got != "req-7" {
		t.Fatalf("expected correlation id to mirror tag, got %q", got)
	}

	plain := message.NewMessage("uuid-2", nil)
	Metadata{ContentTypeKey: "application/test"}.Apply(plain)
	if got := middleware.MessageCorrelationID(plain); got != "" {
		t.Fatalf("expected no correlation id on untagged message, got %q", got)
	}

	roundTrip := FromWatermill(msg.Metadata)
	if tag, ok := roundTrip.Tag(); !ok || tag != "req-7" {
		t.Fatalf("expected tag to survive conversion, got %q %v", tag, ok)
	}
}
