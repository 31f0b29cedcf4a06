package tagherald

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	// subscribeResponseAllSubscribed is the response to /subscribe when
	// the user is already subscribed to every available tag
	subscribeResponseAllSubscribed = "You are currently subscribed to all tags!"

	// unsubscribeResponseNoneSubscribed is the response to /unsubscribe
	// when the user has no subscriptions
	unsubscribeResponseNoneSubscribed = "Not currently subscribed to any tags!"

	subscribeMenuPrompt   = "Select the tags you'd like to subscribe to:"
	unsubscribeMenuPrompt = "Select the tags you'd like to unsubscribe from:"

	subscribedResponseFormat   = "Subscribed to: %s"
	unsubscribedResponseFormat = "Unsubscribed from: %s"
)

// runSubscribeCommand presents a selectable menu of tags the user
// hasn't subscribed to yet. If the user is subscribed to every tag,
// they're told so instead of being shown an empty menu.
func (t *TagHerald) runSubscribeCommand(
	ctx context.Context,
	handler InteractionHandler,
	u *User,
) {
	t.offerTagMenu(ctx, handler, u, true)
}

// runUnsubscribeCommand presents a selectable menu of the user's
// current subscriptions. If the user has none, they're told so instead
// of being shown an empty menu.
func (t *TagHerald) runUnsubscribeCommand(
	ctx context.Context,
	handler InteractionHandler,
	u *User,
) {
	t.offerTagMenu(ctx, handler, u, false)
}

// offerTagMenu computes the offer set for a subscribe or unsubscribe
// action and edits the deferred response with either a select menu or
// the appropriate empty-offer message.
func (t *TagHerald) offerTagMenu(
	ctx context.Context,
	handler InteractionHandler,
	u *User,
	subscribe bool,
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

	subscribed, err := t.store.Subscriptions(ctx, u.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error getting subscriptions", tint.Err(err))
		t.editWithError(ctx, handler)
		return
	}

	var offer []discordgo.ForumTag
	var emptyMsg string
	var prompt string
	var menuCustomID string

	if subscribe {
		offer = subscribeCandidates(forumTags, subscribed)
		emptyMsg = subscribeResponseAllSubscribed
		prompt = subscribeMenuPrompt
		menuCustomID = subscribeMenuCustomID
	} else {
		offer = unsubscribeCandidates(forumTags, subscribed)
		emptyMsg = unsubscribeResponseNoneSubscribed
		prompt = unsubscribeMenuPrompt
		menuCustomID = unsubscribeMenuCustomID
	}

	if len(offer) == 0 {
		if _, editErr := handler.Edit(
			ctx,
			&discordgo.WebhookEdit{Content: &emptyMsg},
			discordgo.WithContext(ctx),
		); editErr != nil {
			logger.ErrorContext(ctx, "error updating interaction", tint.Err(editErr))
		}
		return
	}

	components := tagSelectMenus(menuCustomID, offer)
	if _, editErr := handler.Edit(
		ctx,
		&discordgo.WebhookEdit{
			Content:    &prompt,
			Components: &components,
		},
		discordgo.WithContext(ctx),
	); editErr != nil {
		logger.ErrorContext(ctx, "error updating interaction", tint.Err(editErr))
	}
}

// handleTagSelection processes a select-menu callback, forwarding the
// chosen tag names to the subscription store. The returned response
// replaces the menu message with a confirmation.
func (t *TagHerald) handleTagSelection(
	ctx context.Context,
	handler InteractionHandler,
) *discordgo.InteractionResponse {
	ctx, logger := t.getLogger(ctx)

	i := handler.GetInteraction()
	data := i.MessageComponentData()

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.ErrorContext(ctx, "no user found in component interaction")
		return nil
	}

	customID, _, _ := strings.Cut(data.CustomID, ":")

	var confirmationFormat string
	var storeErr error

	switch customID {
	case subscribeMenuCustomID:
		confirmationFormat = subscribedResponseFormat
		storeErr = t.store.Subscribe(ctx, discordUser.ID, data.Values)
	case unsubscribeMenuCustomID:
		confirmationFormat = unsubscribedResponseFormat
		storeErr = t.store.Unsubscribe(ctx, discordUser.ID, data.Values)
	default:
		logger.WarnContext(
			ctx,
			"unknown component custom ID",
			"custom_id", data.CustomID,
		)
		return nil
	}

	if storeErr != nil {
		logger.ErrorContext(ctx, "error updating subscriptions", tint.Err(storeErr))
		errMsg := DefaultDiscordErrorMessage
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    errMsg,
				Components: []discordgo.MessageComponent{},
			},
		}
	}

	logger.InfoContext(
		ctx,
		"updated subscriptions",
		"user_id", discordUser.ID,
		"custom_id", data.CustomID,
		"tags", data.Values,
	)

	content := fmt.Sprintf(
		confirmationFormat,
		strings.Join(data.Values, tagNameSeparator),
	)
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	}
}
