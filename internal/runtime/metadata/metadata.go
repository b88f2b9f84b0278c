// Package metadata defines the headers the bridge sets on bus messages.
package metadata

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

const (
	// TagKey carries the caller's correlation tag. Its presence, not its value,
	// marks a message as tagged: the empty string is a valid tag.
	TagKey = "axon_mid"
	// ContentTypeKey names the payload encoding.
	ContentTypeKey = "content_type"
	// BridgeKey identifies the bridge instance that published the message.
	BridgeKey = "axon_bridge"
	// OriginKey carries the publishing dealer's unique id. A dealer skips
	// messages stamped with its own origin.
	OriginKey = "axon_origin"
)

// Metadata is the header map carried alongside a bus message.
type Metadata map[string]string

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// WithTag returns a clone marked with the correlation tag.
func (m Metadata) WithTag(tag string) Metadata {
	return m.With(TagKey, tag)
}

// Tag reports the correlation tag and whether the message was tagged at all.
func (m Metadata) Tag() (string, bool) {
	tag, ok := m[TagKey]
	return tag, ok
}

// Apply copies the entries onto msg. A tagged header set also becomes the
// Watermill correlation id so downstream routers can trace the exchange.
func (m Metadata) Apply(msg *message.Message) {
	for k, v := range m {
		msg.Metadata.Set(k, v)
	}
	if tag, ok := m.Tag(); ok && tag != "" {
		middleware.SetCorrelationID(tag, msg)
	}
}

// FromWatermill copies the headers of a received message.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}
