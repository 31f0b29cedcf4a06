package tagherald

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// stubSession implements DiscordSessionHandler with overridable
// function fields, so tests only stub what they use.
type stubSession struct {
	openFunc          func() error
	closeFunc         func() error
	guildsFunc        func() []*discordgo.Guild
	guildChannelsFunc func(
		guildID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Channel, error)
	channelFunc func(
		channelID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)
	channelMessageSendFunc func(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	bulkOverwriteFunc func(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)
	interactionRespondFunc func(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error
}

func (s *stubSession) Open() error {
	if s.openFunc != nil {
		return s.openFunc()
	}
	return nil
}

func (s *stubSession) Close() error {
	if s.closeFunc != nil {
		return s.closeFunc()
	}
	return nil
}

func (*stubSession) AddHandler(any) func() {
	return func() {}
}

func (*stubSession) SetIdentify(discordgo.Identify) {}

func (s *stubSession) Guilds() []*discordgo.Guild {
	if s.guildsFunc != nil {
		return s.guildsFunc()
	}
	return nil
}

func (s *stubSession) GuildChannels(
	guildID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Channel, error) {
	if s.guildChannelsFunc != nil {
		return s.guildChannelsFunc(guildID, options...)
	}
	return nil, nil
}

func (s *stubSession) Channel(
	channelID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	if s.channelFunc != nil {
		return s.channelFunc(channelID, options...)
	}
	return nil, nil
}

func (s *stubSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	if s.channelMessageSendFunc != nil {
		return s.channelMessageSendFunc(channelID, message, opts...)
	}
	return nil, nil
}

func (s *stubSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	if s.bulkOverwriteFunc != nil {
		return s.bulkOverwriteFunc(appID, guildID, commands, options...)
	}
	return commands, nil
}

func (s *stubSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	if s.interactionRespondFunc != nil {
		return s.interactionRespondFunc(interaction, resp, options...)
	}
	return nil
}

func (*stubSession) InteractionResponse(
	*discordgo.Interaction,
	...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return nil, nil
}

func (*stubSession) InteractionResponseEdit(
	*discordgo.Interaction,
	*discordgo.WebhookEdit,
	...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return nil, nil
}

func (*stubSession) InteractionResponseDelete(
	*discordgo.Interaction,
	...discordgo.RequestOption,
) error {
	return nil
}

// stubHandler implements InteractionHandler, recording responses and
// edits for assertions.
type stubHandler struct {
	interaction *discordgo.InteractionCreate
	responses   []*discordgo.InteractionResponse
	edits       []*discordgo.WebhookEdit
	deleted     bool
}

func (h *stubHandler) Respond(
	_ context.Context,
	i *discordgo.InteractionResponse,
) error {
	h.responses = append(h.responses, i)
	return nil
}

func (h *stubHandler) Edit(
	_ context.Context,
	e *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	h.edits = append(h.edits, e)
	return nil, nil
}

func (h *stubHandler) Delete(_ context.Context, _ ...discordgo.RequestOption) {
	h.deleted = true
}

func (h *stubHandler) GetInteraction() *discordgo.InteractionCreate {
	return h.interaction
}

func (*stubHandler) Logger() *slog.Logger {
	return slog.Default()
}

// stubDirectory implements DirectoryLookup with a fixed result.
type stubDirectory struct {
	tags []discordgo.ForumTag
	err  error
}

func (d *stubDirectory) ForumTags(string, string) ([]discordgo.ForumTag, error) {
	return d.tags, d.err
}

func testLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.Default().With("test", t.Name())
}

func discordUserFixture(id string, username string) discordgo.User {
	return discordgo.User{
		ID:         id,
		Username:   username,
		GlobalName: username,
	}
}

func newForumTag(id string, name string) discordgo.ForumTag {
	return discordgo.ForumTag{ID: id, Name: name}
}

func forumTags(names ...string) []discordgo.ForumTag {
	tags := make([]discordgo.ForumTag, len(names))
	for i, name := range names {
		tags[i] = newForumTag(name+"-id", name)
	}
	return tags
}

// newTestTagHerald builds a bot wired with a sqlite-backed store, a
// stub session, and no rate limiting.
func newTestTagHerald(t testing.TB, session *stubSession) *TagHerald {
	t.Helper()

	config := DefaultConfig()
	config.Discord.Token = "test-token"
	config.Discord.ApplicationID = "app-1"
	config.Discord.GuildName = "Example Guild"
	config.Discord.ChannelName = "help-forum"

	db := newTestDatabase(t)

	th := &TagHerald{
		config:        config,
		logger:        testLogger(t),
		db:            db.DB(),
		writeDB:       db,
		store:         db,
		notifyLimiter: rate.NewLimiter(rate.Inf, 1),
		signalReady:   make(chan struct{}, 1),
		eventShutdown: make(chan struct{}, 1),
	}
	th.discord = &Discord{
		session: session,
		config:  config.Discord,
		logger:  th.logger,
		th:      th,
	}
	th.commandHandlers = map[string]commandHandlerFunc{
		DiscordSlashCommandListTags:    th.runListTagsCommand,
		DiscordSlashCommandMention:     th.runMentionCommand,
		DiscordSlashCommandSubscribe:   th.runSubscribeCommand,
		DiscordSlashCommandUnsubscribe: th.runUnsubscribeCommand,
		DiscordSlashCommandSync:        th.runSyncCommand,
	}
	return th
}

// newTestDatabase creates a sqlite-backed database in a temp directory.
func newTestDatabase(t testing.TB) *database {
	t.Helper()
	ctx := context.Background()

	db, err := CreateDB(
		ctx,
		dbTypeSQLite,
		filepath.Join(t.TempDir(), "tagherald_test.sqlite3"),
		nil,
	)
	require.NoError(t, err)

	t.Cleanup(
		func() {
			sqlDB, dbErr := db.DB()
			if dbErr == nil && sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	return NewDatabase(db, slog.Default(), false)
}
