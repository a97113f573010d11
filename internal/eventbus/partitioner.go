package eventbus

import "github.com/segmentio/kafka-go"

// scopeBalancer assigns a partition deterministically from the message
// key (the serialized ScopeKey), so every event for a scope lands on the
// same partition for the life of the topic. kafka.Hash already hashes the
// key with fnv1a and is stable across process restarts and broker
// membership changes; CRC32Balancer is not used because it is not
// guaranteed stable across kafka-go versions.
func scopeBalancer() kafka.Balancer {
	return &kafka.Hash{}
}
