// Package push delivers Web Push notifications to subscribed browsers
// using VAPID-signed requests.
package push

import (
	"context"
	"encoding/json"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/repository"
)

// Notifier sends notifications to a user's registered browser endpoints.
// A nil *Notifier is safe to pass around; construction fails closed by
// returning nil when keys are missing.
type Notifier struct {
	repo    *repository.PushRepository
	options *webpush.Options
}

func NewNotifier(repo *repository.PushRepository, keys *VAPIDKeys, subscriberEmail string) *Notifier {
	if repo == nil || keys == nil || keys.PublicKey == "" || keys.PrivateKey == "" {
		return nil
	}
	if subscriberEmail == "" {
		subscriberEmail = "mailto:admin@localhost"
	}
	return &Notifier{
		repo: repo,
		options: &webpush.Options{
			Subscriber:      subscriberEmail,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             3600,
		},
	}
}

type notificationPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notify sends the notification to every endpoint registered for userID.
// Endpoints the push service reports as gone are pruned.
func (n *Notifier) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	if n == nil {
		return
	}
	defer logger.DeferLogDuration("push.Notify", time.Now())()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	subs, err := n.repo.GetByUser(ctx, userID)
	if err != nil {
		logger.Errorf("push notify user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(notificationPayload{Title: title, Body: body, Data: data})
	if err != nil {
		logger.Errorf("push notify marshal: %v", err)
		return
	}
	n.deliver(ctx, subs, payload)
}

// NotifyAll sends the notification to every registered endpoint, used for
// congregation-wide announcements like pinned notices.
func (n *Notifier) NotifyAll(ctx context.Context, title, body string, data map[string]string) {
	if n == nil {
		return
	}
	defer logger.DeferLogDuration("push.NotifyAll", time.Now())()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	subs, err := n.repo.GetAll(ctx)
	if err != nil {
		logger.Errorf("push notify all: %v", err)
		return
	}
	payload, err := json.Marshal(notificationPayload{Title: title, Body: body, Data: data})
	if err != nil {
		logger.Errorf("push notify marshal: %v", err)
		return
	}
	n.deliver(ctx, subs, payload)
}

func (n *Notifier) deliver(ctx context.Context, subs []repository.PushSubscription, payload []byte) {
	for i := range subs {
		sub := &subs[i]
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, n.options)
		if err != nil {
			logger.Errorf("push send %s: %v", truncate(sub.Endpoint, 50), err)
			continue
		}
		resp.Body.Close()
		// Gone endpoints mean the browser dropped the subscription.
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			if err := n.repo.Delete(ctx, sub.Endpoint); err != nil {
				logger.Errorf("push prune %s: %v", truncate(sub.Endpoint, 50), err)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
