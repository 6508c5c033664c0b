package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/totegamma/reputation-engine"
)

const channelPrefix = "reputation:"

// SignalService fans reputation events out over redis pub/sub so every
// instance can serve realtime subscribers.
type SignalService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewSignalService(redisClient *redis.Client, logger *zap.Logger) *SignalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalService{
		rdb:    redisClient,
		logger: logger.Named("signal"),
	}
}

func channelOf(event reputation.Event) string {
	return channelPrefix + reputation.ComposeReputationKey(event.UserKey, event.TagKey)
}

func (s *SignalService) Publish(ctx context.Context, event reputation.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, channelOf(event), jsonstr).Err()
}

// ValidPrefix reports whether prefix can be subscribed to. Prefixes are
// reputation key prefixes such as "bob:" or "bob:helpfulness".
func ValidPrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	user, tag, hasTag := strings.Cut(prefix, ":")
	if !reputation.IsKeyComponent(user) {
		return false
	}
	return !hasTag || tag == "" || reputation.IsKeyComponent(tag)
}

// Realtime forwards events matching the latest prefix set received on request
// to response until ctx is done. Each new set replaces the previous one.
func (s *SignalService) Realtime(ctx context.Context, request <-chan []string, response chan<- reputation.Event) {
	var cancel context.CancelFunc = func() {}
	defer func() { cancel() }()

	for {
		select {
		case <-ctx.Done():
			return
		case prefixes, ok := <-request:
			if !ok {
				return
			}
			cancel()

			patterns := make([]string, 0, len(prefixes))
			for _, prefix := range prefixes {
				if ValidPrefix(prefix) {
					patterns = append(patterns, channelPrefix+prefix+"*")
				}
			}
			if len(patterns) == 0 {
				cancel = func() {}
				continue
			}

			listenCtx, listenCancel := context.WithCancel(ctx)
			cancel = listenCancel
			go s.listen(listenCtx, patterns, response)
		}
	}
}

func (s *SignalService) listen(ctx context.Context, patterns []string, response chan<- reputation.Event) {
	pubsub := s.rdb.PSubscribe(ctx, patterns...)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			var event reputation.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case response <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
