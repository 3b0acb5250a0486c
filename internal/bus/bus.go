package bus

import (
	"context"

	"github.com/mcoot/livequiz/internal/model"
)

// Handler receives a published payload
type Handler func(ctx context.Context, payload []byte)

// Subscription is an active registration of a Handler on a topic
type Subscription interface {
	Close() error
}

// Bus is a topic-based publish/subscribe transport
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)
}

// CommandsTopic carries inbound commands for every session
const CommandsTopic = "commands"

// SessionTopic carries snapshots and notices for everyone in a session
func SessionTopic(code model.SessionCode) string {
	return "session:" + string(code)
}

// HostTopic carries host-only answer progress for a session
func HostTopic(code model.SessionCode) string {
	return "session:" + string(code) + ":host"
}

// UserTopic carries notices addressed to one participant
func UserTopic(id model.PlayerID) string {
	return "user:" + string(id)
}
