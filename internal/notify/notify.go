package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ghouse/pkg/types"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateNotification(ctx context.Context, n *types.Notification) (*types.Notification, error)
	GetNotificationSettings(ctx context.Context, userID int64) (*types.NotificationSettings, error)
	ListAdminUsers(ctx context.Context) ([]*types.User, error)
}

// Pusher delivers a notification to a user's live connections.
type Pusher interface {
	SendNotification(userID int64, payload interface{})
}

// TelegramSender mirrors notifications to Telegram chats.
type TelegramSender interface {
	Enabled() bool
	SendNotification(ctx context.Context, chatID string, n *types.Notification) error
}

// Service creates notifications and fans them out: persisted first, then
// pushed to live WebSocket connections, then mirrored to Telegram when the
// user opted in. Only persistence failures are returned; delivery is
// best-effort.
type Service struct {
	store    Store
	pusher   Pusher
	telegram TelegramSender
	log      zerolog.Logger
}

// NewService creates a notification service.
func NewService(store Store, pusher Pusher, telegram TelegramSender, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		pusher:   pusher,
		telegram: telegram,
		log:      log.With().Str("component", "notify").Logger(),
	}
}

// Notify creates and delivers one notification.
func (s *Service) Notify(ctx context.Context, userID int64, kind, title, message, source string) (*types.Notification, error) {
	created, err := s.store.CreateNotification(ctx, &types.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Source:  source,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.pusher.SendNotification(userID, created)
	s.mirrorToTelegram(ctx, created)

	return created, nil
}

// NotifyAdmins delivers the same notification to every administrator.
// Individual failures are logged and do not stop the rest.
func (s *Service) NotifyAdmins(ctx context.Context, kind, title, message, source string) error {
	admins, err := s.store.ListAdminUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}

	for _, admin := range admins {
		if _, err := s.Notify(ctx, admin.ID, kind, title, message, source); err != nil {
			s.log.Error().Err(err).Int64("user_id", admin.ID).Msg("failed to notify admin")
		}
	}
	return nil
}

// mirrorToTelegram forwards the notification when the user enabled Telegram
// delivery and its severity passes their preferences.
func (s *Service) mirrorToTelegram(ctx context.Context, n *types.Notification) {
	if !s.telegram.Enabled() {
		return
	}

	settings, err := s.store.GetNotificationSettings(ctx, n.UserID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", n.UserID).Msg("failed to load notification settings")
		return
	}
	if !settings.TelegramEnabled || settings.TelegramChatID == "" {
		return
	}
	if !severityAllowed(n.Type, settings) {
		return
	}

	if err := s.telegram.SendNotification(ctx, settings.TelegramChatID, n); err != nil {
		s.log.Error().Err(err).Int64("user_id", n.UserID).Msg("telegram mirror failed")
	}
}

func severityAllowed(kind string, settings *types.NotificationSettings) bool {
	switch kind {
	case types.NotificationError:
		return settings.NotifyCritical
	case types.NotificationWarning:
		return settings.NotifyWarning
	default:
		return settings.NotifyInfo
	}
}
