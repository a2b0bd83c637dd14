package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "x-event-id"
	HeaderEventType = "x-event-type"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// EventHeaders stamps a fresh event id plus the event type. The payload
// field names are the wire contract, so per-event metadata rides in
// headers instead of an envelope.
func EventHeaders(eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderEventID, Value: []byte(uuid.NewString())},
		{Key: HeaderEventType, Value: []byte(eventType)},
	}
}

// EventID returns the producer-stamped event id, falling back to the
// broker coordinates for messages published without one.
func EventID(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == HeaderEventID {
			return string(h.Value)
		}
	}
	return fmt.Sprintf("%s:%d:%d", m.Topic, m.Partition, m.Offset)
}
