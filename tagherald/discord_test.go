package tagherald

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckResponseFlag(t *testing.T) {
	d := &Discord{}

	// listing and mentions are public
	assert.Equal(
		t,
		discordgo.MessageFlags(0),
		d.ackResponseFlag(DiscordSlashCommandListTags),
	)
	assert.Equal(
		t,
		discordgo.MessageFlags(0),
		d.ackResponseFlag(DiscordSlashCommandMention),
	)

	// subscription management is ephemeral
	for _, command := range []string{
		DiscordSlashCommandSubscribe,
		DiscordSlashCommandUnsubscribe,
		DiscordSlashCommandSync,
	} {
		assert.Equal(
			t,
			discordgo.MessageFlagsEphemeral,
			d.ackResponseFlag(command),
			command,
		)
	}
}

func TestRegisterCommands(t *testing.T) {
	var gotAppID string
	var gotGuildID string
	var gotCommands []*discordgo.ApplicationCommand

	session := &stubSession{
		bulkOverwriteFunc: func(
			appID string,
			guildID string,
			commands []*discordgo.ApplicationCommand,
			_ ...discordgo.RequestOption,
		) ([]*discordgo.ApplicationCommand, error) {
			gotAppID = appID
			gotGuildID = guildID
			gotCommands = commands
			return commands, nil
		},
	}

	d := &Discord{
		session: session,
		config: &DiscordConfig{
			ApplicationID: "app-1",
			GuildID:       "guild-1",
		},
		logger: testLogger(t),
	}

	created, err := d.registerCommands()
	require.NoError(t, err)

	assert.Equal(t, "app-1", gotAppID)
	assert.Equal(t, "guild-1", gotGuildID)

	names := make([]string, len(gotCommands))
	for i, c := range gotCommands {
		names[i] = c.Name
	}
	assert.Equal(
		t,
		[]string{
			DiscordSlashCommandListTags,
			DiscordSlashCommandMention,
			DiscordSlashCommandSubscribe,
			DiscordSlashCommandUnsubscribe,
			DiscordSlashCommandSync,
		},
		names,
	)
	assert.Equal(t, gotCommands, created)

	// only sync is permission-gated
	for _, c := range gotCommands {
		if c.Name == DiscordSlashCommandSync {
			require.NotNil(t, c.DefaultMemberPermissions)
			assert.Equal(
				t,
				int64(discordgo.PermissionManageServer),
				*c.DefaultMemberPermissions,
			)
		} else {
			assert.Nil(t, c.DefaultMemberPermissions, c.Name)
		}
	}
}

func TestTagSelectMenusSingleRow(t *testing.T) {
	offer := forumTags("news", "help", "events")

	rows := tagSelectMenus(subscribeMenuCustomID, offer)
	require.Len(t, rows, 1)

	row, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)

	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)

	assert.Equal(t, "subscribe_tags:0", menu.CustomID)
	assert.Equal(t, discordgo.StringSelectMenu, menu.MenuType)
	require.NotNil(t, menu.MinValues)
	assert.Equal(t, 1, *menu.MinValues)
	assert.Equal(t, len(offer), menu.MaxValues)

	require.Len(t, menu.Options, len(offer))
	for i, tag := range offer {
		assert.Equal(t, tag.Name, menu.Options[i].Label)
		assert.Equal(t, tag.Name, menu.Options[i].Value)
	}
}

func TestTagSelectMenusChunking(t *testing.T) {
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("tag-%02d", i)
	}
	offer := forumTags(names...)

	rows := tagSelectMenus(unsubscribeMenuCustomID, offer)
	require.Len(t, rows, 2)

	first, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	firstMenu, ok := first.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	assert.Equal(t, "unsubscribe_tags:0", firstMenu.CustomID)
	assert.Len(t, firstMenu.Options, discordMaxSelectMenuOptions)
	assert.Equal(t, discordMaxSelectMenuOptions, firstMenu.MaxValues)

	second, ok := rows[1].(discordgo.ActionsRow)
	require.True(t, ok)
	secondMenu, ok := second.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	assert.Equal(t, "unsubscribe_tags:1", secondMenu.CustomID)
	assert.Len(t, secondMenu.Options, 5)
	assert.Equal(t, "tag-25", secondMenu.Options[0].Value)
}

// 5 rows of 25 options caps a single message at 125 offered tags.
// Beyond that, the overflow is dropped rather than producing an invalid
// message.
func TestTagSelectMenusRowCap(t *testing.T) {
	names := make([]string, 130)
	for i := range names {
		names[i] = fmt.Sprintf("tag-%03d", i)
	}
	offer := forumTags(names...)

	rows := tagSelectMenus(subscribeMenuCustomID, offer)
	assert.Len(t, rows, discordMaxComponentRows)
}
