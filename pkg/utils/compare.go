package utils

import (
	"slices"

	"github.com/nats-io/nats.go"
)

// StreamConfigEqual compares the stream properties the trigger consumer manages.
func StreamConfigEqual(a, b nats.StreamConfig) bool {
	return a.Name == b.Name &&
		a.Retention == b.Retention &&
		a.MaxAge == b.MaxAge &&
		a.Storage == b.Storage &&
		slices.Equal(a.Subjects, b.Subjects)
}

// ConsumerConfigEqual compares the consumer properties the trigger consumer manages.
func ConsumerConfigEqual(a, b nats.ConsumerConfig) bool {
	return a.Durable == b.Durable &&
		a.AckPolicy == b.AckPolicy &&
		a.MaxDeliver == b.MaxDeliver &&
		a.AckWait == b.AckWait &&
		a.DeliverGroup == b.DeliverGroup &&
		slices.Equal(a.FilterSubjects, b.FilterSubjects)
}
