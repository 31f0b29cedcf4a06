package tagherald

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	syncResponseFormat = "Synced %d tags and refreshed commands."
)

// syncForumTags passes the forum's full tag list through to the
// subscription store, unchanged. Returns the number of tags synced.
func (t *TagHerald) syncForumTags(ctx context.Context) (int, error) {
	forumTags, err := t.directory.ForumTags(
		t.config.Discord.GuildName,
		t.config.Discord.ChannelName,
	)
	if err != nil {
		return 0, err
	}
	if err := t.store.SyncTags(ctx, forumTags); err != nil {
		return 0, err
	}
	return len(forumTags), nil
}

// runSyncCommand syncs the forum tags with the subscription store, then
// re-registers the application commands.
func (t *TagHerald) runSyncCommand(
	ctx context.Context,
	handler InteractionHandler,
	_ *User,
) {
	ctx, logger := t.getLogger(ctx)

	ct, err := t.syncForumTags(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, "guild or channel not found", tint.Err(err))
		} else {
			logger.ErrorContext(ctx, "error syncing tags", tint.Err(err))
		}
		t.editWithError(ctx, handler)
		return
	}

	if _, err := t.discord.registerCommands(
		discordgo.WithContext(ctx),
	); err != nil {
		logger.ErrorContext(ctx, "error re-registering commands", tint.Err(err))
		t.editWithError(ctx, handler)
		return
	}

	content := fmt.Sprintf(syncResponseFormat, ct)
	if _, editErr := handler.Edit(
		ctx,
		&discordgo.WebhookEdit{Content: &content},
		discordgo.WithContext(ctx),
	); editErr != nil {
		logger.ErrorContext(ctx, "error updating interaction", tint.Err(editErr))
	}
}
