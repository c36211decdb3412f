package notify

import (
	"context"

	"github.com/pkg/errors"
)

type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
)

// NoTopic — сентинел "без топика" в конфиге роутинга.
const NoTopic = 1

// MessageRef указывает на конкретное отправленное уведомление,
// чтобы его потом можно было отредактировать или удалить.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, topicID int, text string) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type RouteConfig struct {
	PrimaryChatID   int64
	SecondaryChatID int64 // 0 — второй канал не настроен

	ActiveTopicID    int
	CompletedTopicID int
}

type route struct {
	chatID  int64
	topicID int // 0 — слать без топика
}

// Dispatcher маршрутизирует уведомления по каналам/топикам.
// Маршруты считаются один раз из конфига:
//   - задан второй канал: active -> основной, completed -> второй, оба без топиков;
//   - топик фазы равен NoTopic: основной канал без топика;
//   - иначе: основной канал с топиком фазы.
type Dispatcher struct {
	m      Messenger
	routes map[Phase]route
}

func NewDispatcher(m Messenger, cfg RouteConfig) *Dispatcher {
	routes := make(map[Phase]route, 2)
	if cfg.SecondaryChatID != 0 {
		routes[PhaseActive] = route{chatID: cfg.PrimaryChatID}
		routes[PhaseCompleted] = route{chatID: cfg.SecondaryChatID}
	} else {
		routes[PhaseActive] = resolveTopic(cfg.PrimaryChatID, cfg.ActiveTopicID)
		routes[PhaseCompleted] = resolveTopic(cfg.PrimaryChatID, cfg.CompletedTopicID)
	}
	return &Dispatcher{m: m, routes: routes}
}

func resolveTopic(chatID int64, topicID int) route {
	if topicID == NoTopic || topicID == 0 {
		return route{chatID: chatID}
	}
	return route{chatID: chatID, topicID: topicID}
}

func (d *Dispatcher) Dispatch(ctx context.Context, text string, phase Phase) (MessageRef, error) {
	r, ok := d.routes[phase]
	if !ok {
		return MessageRef{}, errors.Errorf("unknown phase %q", phase)
	}
	id, err := d.m.SendMessage(ctx, r.chatID, r.topicID, text)
	if err != nil {
		return MessageRef{}, errors.Wrap(err, "send notification")
	}
	return MessageRef{ChatID: r.chatID, MessageID: id}, nil
}

func (d *Dispatcher) Update(ctx context.Context, ref MessageRef, text string) error {
	return errors.Wrap(d.m.EditMessage(ctx, ref.ChatID, ref.MessageID, text), "edit notification")
}

func (d *Dispatcher) Remove(ctx context.Context, ref MessageRef) error {
	return errors.Wrap(d.m.DeleteMessage(ctx, ref.ChatID, ref.MessageID), "delete notification")
}
