package tagherald

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	// subscribeMenuCustomID prefixes the custom ID of select menus
	// offering tags to subscribe to
	subscribeMenuCustomID = "subscribe_tags"

	// unsubscribeMenuCustomID prefixes the custom ID of select menus
	// offering tags to unsubscribe from
	unsubscribeMenuCustomID = "unsubscribe_tags"

	customIDFormat = "%s:%d"

	// discord caps select menu option labels at 100 characters
	discordMaxSelectOptionLabel = 100
)

// Discord manages the Discord session and gateway integration for
// tagherald: connecting, registering slash commands, and dispatching
// interaction/thread events to the bot.
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
	th                          *TagHerald
}

// newDiscord initializes a new Discord instance with the provided configuration
func newDiscord(config *DiscordConfig) (*Discord, error) {
	if config == nil {
		return nil, fmt.Errorf("nil discord config")
	}
	return &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}, nil
}

// newSession initializes a new Discord session for the Discord struct.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}
	disc.LogLevel = discordgo.LogDebug

	return session, nil
}

// ackResponseFlag returns the appropriate discordgo.MessageFlags based
// on the given command. Subscription management is ephemeral; tag
// listing and mentions are public.
func (*Discord) ackResponseFlag(command string) discordgo.MessageFlags {
	switch command {
	case DiscordSlashCommandListTags, DiscordSlashCommandMention:
		return 0
	default:
		return discordgo.MessageFlagsEphemeral
	}
}

func (d *Discord) ackResponse(commandName string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: d.ackResponseFlag(commandName),
		},
	}
}

func (*Discord) appCommandListTags() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandListTags,
		Type:        discordgo.ChatApplicationCommand,
		Description: "List the tags available in the forum channel",
	}
}

func (*Discord) appCommandMention() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandMention,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Sends a message mentioning you",
	}
}

func (*Discord) appCommandSubscribe() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandSubscribe,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Subscribe to forum tags, to be mentioned in new threads",
	}
}

func (*Discord) appCommandUnsubscribe() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandUnsubscribe,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Unsubscribe from forum tags",
	}
}

func (*Discord) appCommandSync() *discordgo.ApplicationCommand {
	defaultPerm := int64(discordgo.PermissionManageServer)
	return &discordgo.ApplicationCommand{
		Name:                     DiscordSlashCommandSync,
		Type:                     discordgo.ChatApplicationCommand,
		Description:              "Sync forum tags to the subscription store",
		DefaultMemberPermissions: &defaultPerm,
	}
}

// registerCommands sends the bot's commands to the discord bulk
// overwrite endpoint
func (d *Discord) registerCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	commands := []*discordgo.ApplicationCommand{
		d.appCommandListTags(),
		d.appCommandMention(),
		d.appCommandSubscribe(),
		d.appCommandUnsubscribe(),
		d.appCommandSync(),
	}

	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("created command", "command", c.Name)
	}

	return created, nil
}

// channelMessageSend sends the given message to the given discord channel ID
func (d *Discord) channelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) error {
	_, err := d.session.ChannelMessageSend(channelID, message, opts...)
	return err
}

func (d *Discord) handlerReady() func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(s *discordgo.Session, _ *discordgo.Ready) {
		d.logger.Info(
			"ready",
			"session_id", s.State.SessionID,
			"user_id", s.State.User.ID,
			"username", s.State.User.Username,
		)
	}
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(s *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)

		var sessionID string
		var userID string
		var username string

		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
			if s.State.User != nil {
				userID = s.State.User.ID
				username = s.State.User.Username
			}
		}
		d.logger.Info(
			"connected",
			"session_id", sessionID,
			slog.Group("user", "id", userID, "username", username),
		)
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(s *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)

		var sessionID string
		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
		}
		d.logger.Info("disconnected", "session_id", sessionID)
	}
}

// tagSelectMenus builds select menu component rows from an offer set.
// Discord caps select menus at 25 options and messages at 5 component
// rows, so the offer set is chunked, each chunk becoming its own menu.
func tagSelectMenus(
	customIDPrefix string,
	offer []discordgo.ForumTag,
) []discordgo.MessageComponent {
	minValues := 1

	chunks := chunkItems(discordMaxSelectMenuOptions, offer...)
	if len(chunks) > discordMaxComponentRows {
		chunks = chunks[:discordMaxComponentRows]
	}

	rows := make([]discordgo.MessageComponent, 0, len(chunks))
	for chunkIndex, chunk := range chunks {
		options := make([]discordgo.SelectMenuOption, 0, len(chunk))
		for _, tag := range chunk {
			options = append(
				options,
				discordgo.SelectMenuOption{
					Label: truncate(tag.Name, discordMaxSelectOptionLabel),
					Value: tag.Name,
				},
			)
		}
		menu := discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    fmt.Sprintf(customIDFormat, customIDPrefix, chunkIndex),
			MinValues:   &minValues,
			MaxValues:   len(options),
			Options:     options,
			Placeholder: "Select tags",
		}
		rows = append(
			rows,
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}},
		)
	}
	return rows
}

// DiscordSessionHandler defines the methods from `discordgo.Session`
// used in this application, to enable testing/mocking.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// SetIdentify sets the identify payload sent on gateway connect
	SetIdentify(i discordgo.Identify)

	// Guilds returns the guilds known to the session state
	Guilds() []*discordgo.Guild

	// GuildChannels lists the channels of the given guild
	GuildChannels(
		guildID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Channel, error)

	// Channel retrieves the given channel
	Channel(
		channelID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	// ChannelMessageSend sends a message to a specified channel
	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ApplicationCommandBulkOverwrite overwrites Discord application
	// commands in bulk
	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// InteractionRespond sends the initial response to an interaction
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponse retrieves the current interaction response
	InteractionResponse(
		interaction *discordgo.Interaction,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// InteractionResponseEdit edits an interaction response
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// InteractionResponseDelete deletes an interaction response
	InteractionResponseDelete(
		interaction *discordgo.Interaction,
		options ...discordgo.RequestOption,
	) error
}

// DiscordSession implements [DiscordSessionHandler] over a real
// `*discordgo.Session`.
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (s DiscordSession) Open() error {
	return s.session.Open()
}

func (s DiscordSession) Close() error {
	return s.session.Close()
}

func (s DiscordSession) AddHandler(handler any) func() {
	return s.session.AddHandler(handler)
}

func (s DiscordSession) SetIdentify(i discordgo.Identify) {
	s.session.Identify = i
}

func (s DiscordSession) Guilds() []*discordgo.Guild {
	if s.session.State == nil {
		return nil
	}
	return s.session.State.Guilds
}

func (s DiscordSession) GuildChannels(
	guildID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Channel, error) {
	return s.session.GuildChannels(guildID, options...)
}

func (s DiscordSession) Channel(
	channelID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return s.session.Channel(channelID, options...)
}

func (s DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return s.session.ChannelMessageSend(channelID, message, opts...)
}

func (s DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return s.session.ApplicationCommandBulkOverwrite(
		appID,
		guildID,
		commands,
		options...,
	)
}

func (s DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return s.session.InteractionRespond(interaction, resp, options...)
}

func (s DiscordSession) InteractionResponse(
	interaction *discordgo.Interaction,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return s.session.InteractionResponse(interaction, options...)
}

func (s DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return s.session.InteractionResponseEdit(interaction, newresp, options...)
}

func (s DiscordSession) InteractionResponseDelete(
	interaction *discordgo.Interaction,
	options ...discordgo.RequestOption,
) error {
	return s.session.InteractionResponseDelete(interaction, options...)
}
