package notification

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// UserLookup resolves recipient user names to directory records.
type UserLookup interface {
	GetByUserName(ctx context.Context, userName string) (*domain.User, error)
}

// Deliverer fans a consumed event out to the email and webhook channels.
type Deliverer struct {
	users  UserLookup
	cfg    config.NotificationConfig
	logger *zap.Logger
}

// NewDeliverer creates the delivery stage. users may be nil, in which case recipients
// are addressed by user name.
func NewDeliverer(users UserLookup, cfg config.NotificationConfig, logger *zap.Logger) *Deliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{users: users, cfg: cfg, logger: logger}
}

// Deliver sends the event to every addressee. Creations and give-ups also go to the
// configured staff broadcast list so an unassigned ticket gets picked up.
func (d *Deliverer) Deliver(ctx context.Context, event Event) error {
	d.logger.Info("TicketEvent",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event", event.CommentEvent),
		zap.String("by", event.CommentedBy))

	for _, address := range d.Addresses(ctx, event) {
		d.sendEmailNotificationStub(ctx, event, address)
	}
	d.sendWebhookNotificationStub(ctx, event)
	return nil
}

// Addresses returns the sorted, de-duplicated mailbox list for an event.
func (d *Deliverer) Addresses(ctx context.Context, event Event) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(address string) {
		address = strings.TrimSpace(address)
		if address == "" {
			return
		}
		if _, ok := seen[address]; ok {
			return
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}

	for _, userName := range event.Recipients {
		add(d.addressOf(ctx, userName))
	}
	if event.IsCreateOrGiveUp {
		for _, address := range d.cfg.StaffBroadcast {
			add(address)
		}
	}
	sort.Strings(out)
	return out
}

func (d *Deliverer) addressOf(ctx context.Context, userName string) string {
	if d.users == nil {
		return userName
	}
	user, err := d.users.GetByUserName(ctx, userName)
	if err != nil || user.Email == "" {
		if err != nil {
			d.logger.Debug("recipient lookup failed", zap.String("user", userName), zap.Error(err))
		}
		return userName
	}
	return user.Email
}

func (d *Deliverer) sendEmailNotificationStub(ctx context.Context, event Event, to string) {
	if strings.TrimSpace(d.cfg.EmailFrom) == "" {
		return
	}
	d.logger.Debug("sendEmailNotificationStub",
		zap.String("from", d.cfg.EmailFrom),
		zap.String("to", to),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event", event.CommentEvent))
}

func (d *Deliverer) sendWebhookNotificationStub(ctx context.Context, event Event) {
	if strings.TrimSpace(d.cfg.WebhookURL) == "" {
		return
	}
	d.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", d.cfg.WebhookURL),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("routing_key", event.RoutingKey()))
}
