package tagherald

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDirectoryForumTags(t *testing.T) {
	availableTags := forumTags("news", "help", "events")

	session := &stubSession{
		guildsFunc: func() []*discordgo.Guild {
			return []*discordgo.Guild{
				nil,
				{ID: "guild-1", Name: "Some Other Guild"},
				{ID: "guild-2", Name: "Example Guild"},
			}
		},
		guildChannelsFunc: func(
			guildID string,
			_ ...discordgo.RequestOption,
		) ([]*discordgo.Channel, error) {
			assert.Equal(t, "guild-2", guildID)
			return []*discordgo.Channel{
				nil,
				{
					ID:   "channel-1",
					Name: "general",
					Type: discordgo.ChannelTypeGuildText,
				},
				{
					ID:            "channel-2",
					Name:          "help-forum",
					Type:          discordgo.ChannelTypeGuildForum,
					AvailableTags: availableTags,
				},
			}, nil
		},
	}
	directory := newSessionDirectory(session, nil)

	tags, err := directory.ForumTags("Example Guild", "help-forum")
	require.NoError(t, err)
	assert.Equal(t, availableTags, tags)
}

func TestSessionDirectoryGuildNotFound(t *testing.T) {
	session := &stubSession{
		guildsFunc: func() []*discordgo.Guild {
			return []*discordgo.Guild{{ID: "guild-1", Name: "Some Other Guild"}}
		},
	}
	directory := newSessionDirectory(session, nil)

	_, err := directory.ForumTags("Example Guild", "help-forum")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionDirectoryChannelNotFound(t *testing.T) {
	session := &stubSession{
		guildsFunc: func() []*discordgo.Guild {
			return []*discordgo.Guild{{ID: "guild-1", Name: "Example Guild"}}
		},
		guildChannelsFunc: func(
			string,
			...discordgo.RequestOption,
		) ([]*discordgo.Channel, error) {
			return []*discordgo.Channel{
				{
					ID:   "channel-1",
					Name: "general",
					Type: discordgo.ChannelTypeGuildText,
				},
			}, nil
		},
	}
	directory := newSessionDirectory(session, nil)

	_, err := directory.ForumTags("Example Guild", "help-forum")
	assert.ErrorIs(t, err, ErrNotFound)
}

// A text channel sharing the forum channel's name shouldn't satisfy the
// lookup.
func TestSessionDirectorySkipsNonForumChannel(t *testing.T) {
	availableTags := forumTags("news")

	session := &stubSession{
		guildsFunc: func() []*discordgo.Guild {
			return []*discordgo.Guild{{ID: "guild-1", Name: "Example Guild"}}
		},
		guildChannelsFunc: func(
			string,
			...discordgo.RequestOption,
		) ([]*discordgo.Channel, error) {
			return []*discordgo.Channel{
				{
					ID:   "channel-1",
					Name: "help-forum",
					Type: discordgo.ChannelTypeGuildText,
				},
				{
					ID:            "channel-2",
					Name:          "help-forum",
					Type:          discordgo.ChannelTypeGuildForum,
					AvailableTags: availableTags,
				},
			}, nil
		},
	}
	directory := newSessionDirectory(session, nil)

	tags, err := directory.ForumTags("Example Guild", "help-forum")
	require.NoError(t, err)
	assert.Equal(t, availableTags, tags)
}
