package tagherald

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	// listTagsResponseFormat is the response to /list_tags
	listTagsResponseFormat = "The available tags are %s"

	// listTagsResponseEmpty is the response to /list_tags when the
	// forum has no tags defined
	listTagsResponseEmpty = "There are no tags available yet!"

	// mentionResponseFormat is the response to /mention
	mentionResponseFormat = "Hello <@%s>, here is your mention"
)

// runListTagsCommand lists all of the tags available in the configured
// forum channel, joined with a comma separator.
func (t *TagHerald) runListTagsCommand(
	ctx context.Context,
	handler InteractionHandler,
	_ *User,
) {
	ctx, logger := t.getLogger(ctx)

	forumTags, err := t.directory.ForumTags(
		t.config.Discord.GuildName,
		t.config.Discord.ChannelName,
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, "guild or channel not found", tint.Err(err))
		} else {
			logger.ErrorContext(ctx, "error looking up forum tags", tint.Err(err))
		}
		t.editWithError(ctx, handler)
		return
	}

	content := listTagsResponseEmpty
	if len(forumTags) > 0 {
		content = fmt.Sprintf(listTagsResponseFormat, tagNameList(forumTags))
	}

	if _, editErr := handler.Edit(
		ctx,
		&discordgo.WebhookEdit{Content: &content},
		discordgo.WithContext(ctx),
	); editErr != nil {
		logger.ErrorContext(ctx, "error updating interaction", tint.Err(editErr))
	}
}

// runMentionCommand replies with a message mentioning the invoking user.
func (t *TagHerald) runMentionCommand(
	ctx context.Context,
	handler InteractionHandler,
	u *User,
) {
	ctx, logger := t.getLogger(ctx)

	content := fmt.Sprintf(mentionResponseFormat, u.ID)
	if _, editErr := handler.Edit(
		ctx,
		&discordgo.WebhookEdit{Content: &content},
		discordgo.WithContext(ctx),
	); editErr != nil {
		logger.ErrorContext(ctx, "error updating interaction", tint.Err(editErr))
	}
}
