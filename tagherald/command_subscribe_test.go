package tagherald

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func componentInteraction(
	userID string,
	customID string,
	values []string,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "interaction-1",
			Type: discordgo.InteractionMessageComponent,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "someone"},
			},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.SelectMenuComponent,
				Values:        values,
			},
		},
	}
}

func selectMenuFromEdit(
	t *testing.T,
	edit *discordgo.WebhookEdit,
) discordgo.SelectMenu {
	t.Helper()
	require.NotNil(t, edit.Components)
	require.Len(t, *edit.Components, 1)
	row, ok := (*edit.Components)[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)
	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	return menu
}

func TestSubscribeCommandOffersUnsubscribedTags(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})
	th.directory = &stubDirectory{tags: forumTags("news", "help", "events")}

	require.NoError(t, th.store.Subscribe(ctx, "user-1", []string{"help"}))

	handler := &stubHandler{}
	th.runSubscribeCommand(ctx, handler, &User{ID: "user-1"})

	require.Len(t, handler.edits, 1)
	edit := handler.edits[0]
	require.NotNil(t, edit.Content)
	assert.Equal(t, subscribeMenuPrompt, *edit.Content)

	menu := selectMenuFromEdit(t, edit)
	assert.Equal(t, "subscribe_tags:0", menu.CustomID)
	require.Len(t, menu.Options, 2)
	assert.Equal(t, "news", menu.Options[0].Value)
	assert.Equal(t, "events", menu.Options[1].Value)
}

func TestSubscribeCommandAllTagsSubscribed(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})
	th.directory = &stubDirectory{tags: forumTags("news", "help")}

	require.NoError(t, th.store.Subscribe(ctx, "user-1", []string{"news", "help"}))

	handler := &stubHandler{}
	th.runSubscribeCommand(ctx, handler, &User{ID: "user-1"})

	require.Len(t, handler.edits, 1)
	edit := handler.edits[0]
	require.NotNil(t, edit.Content)
	assert.Equal(t, subscribeResponseAllSubscribed, *edit.Content)
	assert.Nil(t, edit.Components)
}

func TestUnsubscribeCommandOffersSubscribedTags(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})
	th.directory = &stubDirectory{tags: forumTags("news", "help", "events")}

	require.NoError(t, th.store.Subscribe(ctx, "user-1", []string{"events", "news"}))

	handler := &stubHandler{}
	th.runUnsubscribeCommand(ctx, handler, &User{ID: "user-1"})

	require.Len(t, handler.edits, 1)
	edit := handler.edits[0]
	require.NotNil(t, edit.Content)
	assert.Equal(t, unsubscribeMenuPrompt, *edit.Content)

	menu := selectMenuFromEdit(t, edit)
	assert.Equal(t, "unsubscribe_tags:0", menu.CustomID)
	require.Len(t, menu.Options, 2)
	// vocabulary order, not subscription order
	assert.Equal(t, "news", menu.Options[0].Value)
	assert.Equal(t, "events", menu.Options[1].Value)
}

func TestUnsubscribeCommandNoSubscriptions(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})
	th.directory = &stubDirectory{tags: forumTags("news", "help")}

	handler := &stubHandler{}
	th.runUnsubscribeCommand(ctx, handler, &User{ID: "user-1"})

	require.Len(t, handler.edits, 1)
	edit := handler.edits[0]
	require.NotNil(t, edit.Content)
	assert.Equal(t, unsubscribeResponseNoneSubscribed, *edit.Content)
	assert.Nil(t, edit.Components)
}

func TestSubscribeCommandDirectoryNotFound(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})
	th.directory = &stubDirectory{err: ErrNotFound}

	handler := &stubHandler{}
	th.runSubscribeCommand(ctx, handler, &User{ID: "user-1"})

	require.Len(t, handler.edits, 1)
	edit := handler.edits[0]
	require.NotNil(t, edit.Content)
	assert.Equal(t, DefaultDiscordErrorMessage, *edit.Content)
}

func TestHandleTagSelectionSubscribe(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})

	handler := &stubHandler{
		interaction: componentInteraction(
			"user-1",
			"subscribe_tags:0",
			[]string{"news", "events"},
		),
	}

	rv := th.handleTagSelection(ctx, handler)
	require.NotNil(t, rv)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, rv.Type)
	require.NotNil(t, rv.Data)
	assert.Equal(t, "Subscribed to: news, events", rv.Data.Content)
	assert.Empty(t, rv.Data.Components)

	subscribed, err := th.store.Subscriptions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"news": true, "events": true}, subscribed)
}

func TestHandleTagSelectionUnsubscribe(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})

	require.NoError(
		t,
		th.store.Subscribe(ctx, "user-1", []string{"news", "events", "help"}),
	)

	handler := &stubHandler{
		interaction: componentInteraction(
			"user-1",
			"unsubscribe_tags:1",
			[]string{"news", "help"},
		),
	}

	rv := th.handleTagSelection(ctx, handler)
	require.NotNil(t, rv)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, rv.Type)
	require.NotNil(t, rv.Data)
	assert.Equal(t, "Unsubscribed from: news, help", rv.Data.Content)

	subscribed, err := th.store.Subscriptions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"events": true}, subscribed)
}

func TestHandleTagSelectionUnknownCustomID(t *testing.T) {
	ctx := context.Background()
	th := newTestTagHerald(t, &stubSession{})

	handler := &stubHandler{
		interaction: componentInteraction(
			"user-1",
			"mystery_menu:0",
			[]string{"news"},
		),
	}

	assert.Nil(t, th.handleTagSelection(ctx, handler))

	subscribed, err := th.store.Subscriptions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, subscribed)
}
