package tagherald

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound indicates the configured guild or channel couldn't be
// resolved through the Discord session.
var ErrNotFound = errors.New("not found")

// DirectoryLookup resolves a guild name and forum channel name to the
// channel's available tags, in the order discord returns them.
type DirectoryLookup interface {
	ForumTags(guildName string, channelName string) ([]discordgo.ForumTag, error)
}

// sessionDirectory implements DirectoryLookup over a discord session.
// Guilds come from the session state populated by the gateway; channels
// are fetched from the API so tag edits show up without a reconnect.
type sessionDirectory struct {
	session DiscordSessionHandler
	logger  *slog.Logger
}

func newSessionDirectory(
	session DiscordSessionHandler,
	logger *slog.Logger,
) *sessionDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionDirectory{
		session: session,
		logger:  logger.With(loggerNameKey, "directory"),
	}
}

func (s *sessionDirectory) ForumTags(
	guildName string,
	channelName string,
) ([]discordgo.ForumTag, error) {
	guild, err := s.findGuild(guildName)
	if err != nil {
		return nil, err
	}

	channels, err := s.session.GuildChannels(guild.ID)
	if err != nil {
		return nil, fmt.Errorf(
			"error listing channels for guild %q: %w",
			guildName,
			err,
		)
	}

	for _, channel := range channels {
		if channel == nil || channel.Name != channelName {
			continue
		}
		if channel.Type != discordgo.ChannelTypeGuildForum {
			s.logger.Warn(
				"channel name matched a non-forum channel",
				"channel_name", channelName,
				"channel_type", channel.Type,
			)
			continue
		}
		return channel.AvailableTags, nil
	}

	return nil, fmt.Errorf(
		"no forum channel %q in guild %q: %w",
		channelName,
		guildName,
		ErrNotFound,
	)
}

func (s *sessionDirectory) findGuild(guildName string) (*discordgo.Guild, error) {
	for _, guild := range s.session.Guilds() {
		if guild != nil && guild.Name == guildName {
			return guild, nil
		}
	}
	return nil, fmt.Errorf("no guild %q: %w", guildName, ErrNotFound)
}
