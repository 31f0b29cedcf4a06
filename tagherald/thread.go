package tagherald

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	// threadNotificationFormat announces a new thread to subscribers of
	// its applied tags
	threadNotificationFormat = "The applied tags are: %s\n%s"

	threadNotifySendTimeout = 30 * time.Second
)

// handleThreadCreate runs when a thread is created anywhere the bot can
// see. If the thread belongs to the configured forum channel and has
// applied tags, subscribers of those tags are mentioned in the thread.
func (t *TagHerald) handleThreadCreate(
	ctx context.Context,
	tc *discordgo.ThreadCreate,
) {
	ctx, logger := t.getLogger(ctx)

	if tc.Channel == nil || len(tc.AppliedTags) == 0 {
		return
	}

	parent, err := t.discord.session.Channel(
		tc.ParentID,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error getting parent channel", tint.Err(err))
		return
	}
	if parent.Name != t.config.Discord.ChannelName ||
		parent.Type != discordgo.ChannelTypeGuildForum {
		return
	}

	appliedTags := appliedForumTags(parent.AvailableTags, tc.AppliedTags)
	if len(appliedTags) == 0 {
		logger.WarnContext(
			ctx,
			"thread tags not found in parent channel vocabulary",
			"applied_tag_ids", tc.AppliedTags,
		)
		return
	}

	tagNames := make([]string, len(appliedTags))
	for i, tag := range appliedTags {
		tagNames[i] = tag.Name
	}

	subscribers, err := t.store.Subscribers(ctx, tagNames)
	if err != nil {
		logger.ErrorContext(ctx, "error getting subscribers", tint.Err(err))
		return
	}
	if len(subscribers) == 0 {
		logger.DebugContext(
			ctx,
			"no subscribers for applied tags",
			"tags", tagNames,
		)
		return
	}

	if !t.notifyLimiter.Allow() {
		logger.WarnContext(
			ctx,
			"thread notification rate limit exceeded, skipping",
			"thread_id", tc.ID,
			"tags", tagNames,
		)
		return
	}

	message := fmt.Sprintf(
		threadNotificationFormat,
		tagNameList(appliedTags),
		mentionString(subscribers),
	)

	sendCtx, sendCancel := context.WithTimeout(ctx, threadNotifySendTimeout)
	defer sendCancel()

	if sendErr := t.discord.channelMessageSend(
		tc.ID,
		message,
		discordgo.WithContext(sendCtx),
		discordgo.WithRetryOnRatelimit(false),
	); sendErr != nil {
		logger.ErrorContext(ctx, "error sending thread notification", tint.Err(sendErr))
		return
	}
	logger.InfoContext(
		ctx,
		"notified subscribers of new thread",
		"thread_id", tc.ID,
		"tags", tagNames,
		"subscriber_count", len(subscribers),
	)
}

// appliedForumTags maps a thread's applied tag IDs to the parent
// channel's tag definitions, preserving the vocabulary order.
func appliedForumTags(
	available []discordgo.ForumTag,
	appliedIDs []string,
) []discordgo.ForumTag {
	applied := make(map[string]bool, len(appliedIDs))
	for _, id := range appliedIDs {
		applied[id] = true
	}
	tags := make([]discordgo.ForumTag, 0, len(appliedIDs))
	for _, tag := range available {
		if applied[tag.ID] {
			tags = append(tags, tag)
		}
	}
	return tags
}
