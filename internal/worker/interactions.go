package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Player/internal/remote"
	"github.com/shaiso/Player/internal/telemetry"
)

// pageMIME — тип, в котором запрашиваются страницы взаимодействий.
const pageMIME = "text/html"

// handleNotifications сверяет уведомления удалённого run с взаимодействиями.
//
// Возвращает true, если хотя бы одно уведомление текущей выборки
// осталось без ответа и ждёт пользователя.
func (e *execution) handleNotifications(ctx context.Context) (bool, error) {
	notifications, err := e.remote.Notifications(ctx, remote.NotificationRequests)
	if err != nil {
		return false, fmt.Errorf("list notifications: %w", err)
	}

	waiting := false
	for _, n := range notifications {
		replied, err := e.handleNotification(ctx, n)
		if err != nil {
			return false, err
		}
		if !replied {
			waiting = true
		}
	}
	return waiting, nil
}

// handleNotification материализует одно уведомление и возвращает,
// получен ли на него ответ.
func (e *execution) handleNotification(ctx context.Context, n remote.Notification) (bool, error) {
	interaction, err := e.w.interactions.FindOrCreate(ctx, e.run.ID, n.ID)
	if err != nil {
		return false, fmt.Errorf("find interaction %s: %w", n.ID, err)
	}

	changed := false

	if n.HasReply && !interaction.Replied {
		interaction.MarkReplied()
		changed = true
		telemetry.RecordInteractionReply(telemetry.ReplySourceRemote)
		e.logger.Info("interaction replied remotely", "interaction", n.ID)
	}

	if !interaction.Replied {
		if !interaction.HasPage() {
			page, err := e.w.server.Read(ctx, n.URI, pageMIME)
			if err != nil {
				return false, fmt.Errorf("read interaction page %s: %w", n.ID, err)
			}
			interaction.Page = e.rewritePage(string(page), n.ID)
			changed = true
		}

		if interaction.HasLocalReply() {
			if err := e.remote.Reply(ctx, n.ID, interaction.FeedReply, interaction.OutputValue); err != nil {
				return false, fmt.Errorf("forward reply %s: %w", n.ID, err)
			}
			interaction.MarkReplied()
			changed = true
			telemetry.RecordInteractionReply(telemetry.ReplySourceLocal)
			e.logger.Info("interaction reply forwarded", "interaction", n.ID)
		}
	}

	if changed {
		if err := e.w.interactions.Update(ctx, interaction); err != nil {
			return false, fmt.Errorf("save interaction %s: %w", n.ID, err)
		}
	}
	return interaction.Replied, nil
}

func (e *execution) rewritePage(page, interactionID string) string {
	if e.w.rewriter == nil {
		return page
	}
	return e.w.rewriter.Rewrite(page, e.run.ID, interactionID, e.run.ProxyNotifications, e.run.ProxyInteractions)
}

