package model

import "time"

// RawMessage is a single delivery from the queue. The pipeline must call
// exactly one of Ack or Nack before returning it.
type RawMessage struct {
	ID          string
	Data        []byte
	PublishTime time.Time
	Attributes  map[string]string

	// Attempt is the delivery attempt reported by the queue, 0 when unknown.
	Attempt int

	Ack  func()
	Nack func()
}
