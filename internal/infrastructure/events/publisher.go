package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-auth-api/internal/pkg/id"
)

// Topics for auth lifecycle events.
const (
	TopicLogout       = "auth.logout"
	TopicWalletLinked = "auth.wallet_linked"
)

// Publisher emits auth lifecycle events so other services can react
// (cache invalidation, notifications). Publishing is always best-effort:
// callers log failures and never fail the request over them.
type Publisher interface {
	PublishLogout(ctx context.Context, userID string) error
	PublishWalletLinked(ctx context.Context, userID, address string) error
}

// LogoutEvent is emitted when a client acknowledges logout.
type LogoutEvent struct {
	UserID string `json:"user_id"`
}

// WalletLinkedEvent is emitted after a wallet address is bound to an identity.
type WalletLinkedEvent struct {
	UserID  string `json:"user_id"`
	Address string `json:"address"`
}

// WatermillPublisher implements Publisher on top of a Watermill publisher.
type WatermillPublisher struct {
	publisher message.Publisher
}

func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID string) error {
	return p.publish(TopicLogout, LogoutEvent{UserID: userID})
}

func (p *WatermillPublisher) PublishWalletLinked(ctx context.Context, userID, address string) error {
	return p.publish(TopicWalletLinked, WalletLinkedEvent{UserID: userID, Address: address})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(id.New(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
