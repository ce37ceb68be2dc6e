package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/metrics"
)

var errNoResolver = errors.New("chat: no participant resolver configured")

// ParticipantResolver finds the other member of a conversation.
type ParticipantResolver interface {
	OtherParticipant(ctx context.Context, conversationID, userID string) (string, error)
}

// Delivery reports what one Publish did. It is logged and counted, never sent to the sender.
type Delivery struct {
	Channel string

	// Broadcast is how many channel subscribers accepted the frame.
	Broadcast int

	// Dropped counts destinations whose queue refused the frame.
	Dropped int

	// Direct is true when the recipient was reached through their personal session.
	Direct bool

	// DirectSkip is set for direct messages that were not delivered personally.
	DirectSkip string
}

// Fanout pushes persisted messages to live connections.
type Fanout struct {
	registry *Registry
	resolver ParticipantResolver
	logger   zerolog.Logger
}

// NewFanout builds a Fanout over registry. resolver may be nil for room-only use.
func NewFanout(registry *Registry, resolver ParticipantResolver) *Fanout {
	return &Fanout{
		registry: registry,
		resolver: resolver,
		logger:   logx.Component("fanout"),
	}
}

// Publish delivers msg to every subscriber of its channel except origin and, for direct
// messages, to the recipient's session when it is not already subscribed. Each connection
// receives the message at most once. Delivery is best effort: an offline recipient or a
// failed participant lookup only narrows the destinations.
func (f *Fanout) Publish(ctx context.Context, msg message.View, origin Handle) Delivery {
	d := Delivery{Channel: msg.Target.Channel()}

	frame, err := EncodeEnvelope(EventReceiveMessage, msg, "")
	if err != nil {
		f.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to encode receive_message frame")
		return d
	}

	recipientID := ""
	if msg.Target.IsDirect() {
		recipientID, err = f.recipient(ctx, msg)
		if err != nil {
			f.logger.Warn().Err(err).
				Str("message_id", msg.ID).
				Str("conversation_id", msg.Target.ID()).
				Msg("Recipient lookup failed, broadcasting to channel only")
			d.DirectSkip = SkipLookup
		}
	}

	route := f.registry.Route(d.Channel, origin, recipientID)
	if recipientID != "" {
		d.DirectSkip = route.DirectSkip
	}

	for _, h := range route.Subscribers {
		if h.Deliver(frame) {
			d.Broadcast++
		} else {
			d.Dropped++
		}
	}
	metrics.Deliveries.WithLabelValues(metrics.PathChannel).Add(float64(d.Broadcast))

	if route.Direct != nil {
		if route.Direct.Deliver(frame) {
			d.Direct = true
			metrics.Deliveries.WithLabelValues(metrics.PathDirect).Inc()
		} else {
			d.Dropped++
		}
	}

	if d.DirectSkip != "" {
		metrics.DirectSkipped.WithLabelValues(d.DirectSkip).Inc()
	}

	f.logger.Debug().
		Str("message_id", msg.ID).
		Str("channel", d.Channel).
		Int("broadcast", d.Broadcast).
		Bool("direct", d.Direct).
		Str("direct_skip", d.DirectSkip).
		Int("dropped", d.Dropped).
		Msg("Message published")

	return d
}

func (f *Fanout) recipient(ctx context.Context, msg message.View) (string, error) {
	if f.resolver == nil {
		return "", errNoResolver
	}
	return f.resolver.OtherParticipant(ctx, msg.Target.ID(), msg.SenderID)
}
