package tagherald

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/tagherald/tagherald/tagherald.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var (
	defaultLogWriter io.Writer = os.Stdout
)

// commandHandlerFunc executes a single slash command invocation. The
// interaction has already been acknowledged; implementations respond
// by editing the deferred response.
type commandHandlerFunc func(
	ctx context.Context,
	handler InteractionHandler,
	u *User,
)

// TagHerald is the main application struct. It owns the configuration,
// database, subscription store, directory lookup and Discord session,
// and dispatches incoming interactions to command handlers.
type TagHerald struct {
	config *Config

	// Pointer to the GORM connection, for queries
	db *gorm.DB

	// gorm.DB wrapper for write/update/delete operations. When using
	// sqlite, a mutex serializes writes.
	writeDB DBI

	// store is the subscription persistence layer
	store SubscriptionStore

	// directory resolves the guild/channel names to forum tags
	directory DirectoryLookup

	// Standard logger. Missing loggers will try to use this,
	// and fall back to slog.Default()
	logger *slog.Logger

	// Handler to use for the above
	logHandler slog.Handler

	// Handles discord integration, sessions
	discord *Discord

	// notifyLimiter throttles thread-create notification messages
	notifyLimiter *rate.Limiter

	// signalStop enables an explicit stop signal to be sent to the bot
	signalStop chan struct{}

	// signalReady has a value sent on it once Run has finished
	// initializing: database ready, discord session open, commands
	// registered
	signalReady chan struct{}

	// A signal is sent on this channel when shutdown finishes
	eventShutdown chan struct{}

	// prevents Run from executing concurrently
	runMu sync.Mutex

	// The time Run was called
	startedAt time.Time

	commandsInProgress atomic.Int64

	// getInteractionHandlerFunc returns the InteractionHandler to use
	// for an incoming interaction. Overridable for tests.
	getInteractionHandlerFunc func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
	) InteractionHandler

	// commandHandlers maps slash command names to their handlers
	commandHandlers map[string]commandHandlerFunc
}

// New creates and initializes a new TagHerald instance: logging, the
// Discord integration, and the command table. Database connections are
// deferred until Run.
func New(config *Config) (*TagHerald, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	t := &TagHerald{
		config:        config,
		signalReady:   make(chan struct{}, 1),
		eventShutdown: make(chan struct{}, 1),
	}

	t.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     t.config.LogLevel,
			AddSource: true,
		},
	)

	t.logger = slog.New(t.logHandler)
	slog.SetDefault(t.logger)

	t.config.Discord.httpClient = t.config.HTTPClient

	disc, err := newDiscord(t.config.Discord)
	if err != nil {
		errs = append(errs, err)
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     t.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	if disc != nil {
		disc.logger = slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     t.config.Discord.LogLevel,
					AddSource: true,
				},
			),
		).With(loggerNameKey, "discord")
		disc.th = t
		t.discord = disc
	}

	perMinute := t.config.Discord.ThreadNotifyPerMinute
	if perMinute <= 0 {
		perMinute = DefaultThreadNotifyPerMinute
	}
	t.notifyLimiter = rate.NewLimiter(
		rate.Every(time.Minute/time.Duration(perMinute)),
		1,
	)

	t.commandHandlers = map[string]commandHandlerFunc{
		DiscordSlashCommandListTags:    t.runListTagsCommand,
		DiscordSlashCommandMention:     t.runMentionCommand,
		DiscordSlashCommandSubscribe:   t.runSubscribeCommand,
		DiscordSlashCommandUnsubscribe: t.runUnsubscribeCommand,
		DiscordSlashCommandSync:        t.runSyncCommand,
	}

	return t, errors.Join(errs...)
}

func (t *TagHerald) ValidateConfig() error {
	return structValidator.Struct(t.config)
}

func (t *TagHerald) getLogger(ctx context.Context) (
	context.Context,
	*slog.Logger,
) {
	logger, ok := ContextLogger(ctx)
	if logger == nil || !ok {
		logger = t.logger
		ctx = WithLogger(ctx, logger)
	}
	return ctx, logger
}

// Run starts the bot: initializes the database, opens the discord
// gateway session, registers slash commands, performs an initial tag
// sync, then blocks until the context is canceled or a stop signal is
// received.
func (t *TagHerald) Run(ctx context.Context) error {
	// prevents concurrent runs
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.signalStop = make(chan struct{}, 1)
	t.startedAt = time.Now()
	logger := t.logger

	if err := t.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	ctx = WithLogger(ctx, logger)
	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", t.config))

	if t.signalReady == nil {
		t.signalReady = make(chan struct{}, 1)
	}

	// this is the 'runtime' context, which triggers a graceful shutdown
	// when canceled
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-t.signalStop:
			logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			logger.Warn("context canceled, sending stop signal")
			t.signalStop <- struct{}{}
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, t.config.StartupTimeout)
	defer startCancel()

	if err := t.initDB(startCtx); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}

	runtimeWG := &sync.WaitGroup{}

	if err := t.initDiscordSession(ctx, runtimeWG); err != nil {
		logger.ErrorContext(ctx, "error creating discord session", tint.Err(err))
		return err
	}

	logger.InfoContext(ctx, "connecting to discord")
	if err := t.discord.session.Open(); err != nil {
		logger.ErrorContext(ctx, "error connecting to discord!", tint.Err(err))
		return fmt.Errorf("error connecting to discord: %w", err)
	}

	if _, err := t.discord.registerCommands(
		discordgo.WithContext(startCtx),
	); err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}

	// initial sync of the tag vocabulary to the store. Not fatal - the
	// guild list may not be populated yet, and the periodic sync (or a
	// /sync command) will catch up.
	if ct, syncErr := t.syncForumTags(startCtx); syncErr != nil {
		logger.WarnContext(ctx, "initial tag sync failed", tint.Err(syncErr))
	} else {
		logger.InfoContext(ctx, "initial tag sync complete", "tags", ct)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(
		func() error {
			t.watchTagSync(gctx)
			return nil
		},
	)

	t.signalReady <- struct{}{}
	logger.InfoContext(ctx, "sent ready signal")

	<-ctx.Done()
	_ = g.Wait()

	return t.shutdown(context.WithoutCancel(ctx), runtimeWG)
}

func (t *TagHerald) initDB(ctx context.Context) error {
	gormLogger := newGORMLogger(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     t.config.DatabaseLogLevel,
				AddSource: true,
			},
		),
		t.config.DatabaseSlowThreshold,
	)

	db, err := CreateDB(ctx, t.config.DatabaseType, t.config.Database, gormLogger)
	if err != nil {
		return err
	}
	t.db = db

	writeDB := NewDatabase(
		db,
		t.logger,
		t.config.DatabaseType == dbTypePostgres,
	)
	t.writeDB = writeDB
	t.store = writeDB
	return nil
}

// initDiscordSession creates the gateway session (if one wasn't
// injected), sets the identify payload, and registers event handlers.
func (t *TagHerald) initDiscordSession(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	logger := t.logger.With(loggerNameKey, "discord_session")

	if t.discord.session == nil {
		disc, discErr := t.discord.newSession()
		if discErr != nil {
			return fmt.Errorf("error creating discord session: %w", discErr)
		}
		t.discord.session = disc
	}

	if t.directory == nil {
		t.directory = newSessionDirectory(t.discord.session, t.logger)
	}

	ctx = WithLogger(ctx, logger)

	if len(t.discord.discordgoRemoveHandlerFuncs) > 0 {
		for _, h := range t.discord.discordgoRemoveHandlerFuncs {
			h()
		}
	}

	t.discord.session.SetIdentify(
		discordgo.Identify{Intents: t.config.Discord.GatewayIntents},
	)

	t.discord.discordgoRemoveHandlerFuncs = []func(){
		t.discord.session.AddHandler(t.discord.handlerConnect()),
		t.discord.session.AddHandler(t.discord.handlerDisconnect()),
		t.discord.session.AddHandler(t.discord.handlerReady()),
		t.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				i *discordgo.InteractionCreate,
			) {
				handler := t.getInteractionHandlerFunc(ctx, i)
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					t.handleInteraction(ctx, handler)
				}()
			},
		),
		t.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				tc *discordgo.ThreadCreate,
			) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					t.handleThreadCreate(ctx, tc)
				}()
			},
		),
	}

	if t.getInteractionHandlerFunc == nil {
		t.getInteractionHandlerFunc = func(
			rctx context.Context,
			i *discordgo.InteractionCreate,
		) InteractionHandler {
			return GatewayHandler{
				session:     t.discord.session,
				interaction: i,
				logger: t.logger.With(
					slog.Group(
						"interaction",
						interactionLogAttrs(*i)...,
					),
				),
			}
		}
	}
	return nil
}

// watchTagSync periodically re-syncs the forum tag vocabulary to the
// subscription store, so tags created or renamed in discord show up
// without requiring a manual /sync.
func (t *TagHerald) watchTagSync(ctx context.Context) {
	interval := t.config.TagSyncInterval
	if interval <= 0 {
		t.logger.Info("periodic tag sync disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("context canceled, stopping tag sync watcher")
			return
		case <-ticker.C:
			syncCtx, syncCancel := context.WithTimeout(ctx, dbOperationTimeout)
			ct, err := t.syncForumTags(syncCtx)
			syncCancel()
			if err != nil {
				t.logger.WarnContext(ctx, "periodic tag sync failed", tint.Err(err))
			} else {
				t.logger.DebugContext(ctx, "periodic tag sync complete", "tags", ct)
			}
		}
	}
}

// handleInteraction processes a single incoming Discord interaction:
// pings, select-menu callbacks, and slash commands via the command
// table.
func (t *TagHerald) handleInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.ErrorContext(
			ctx,
			"no user found in interaction",
			"interaction", structToSlogValue(i),
		)
		return
	}

	logger = logger.With(slog.Group("interaction", interactionLogAttrs(*i)...))
	ctx = WithLogger(ctx, logger)
	logger.InfoContext(
		ctx,
		"received new interaction",
		"user", structToSlogValue(discordUser),
	)

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	interactionLog, err := newInteractionLog(i, discordUser)
	if err != nil {
		logger.ErrorContext(ctx, "error marshaling interaction", tint.Err(err))
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, createErr := t.writeDB.Create(ctx, interactionLog); createErr != nil {
				logger.ErrorContext(ctx, "error logging interaction", tint.Err(createErr))
			}
		}()
	}

	if discordUser.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring", "user", discordUser)
		return
	}

	switch i.Type {
	case discordgo.InteractionPing:
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponsePong,
			},
		)
	case discordgo.InteractionMessageComponent:
		if rv := t.handleTagSelection(ctx, handler); rv != nil {
			if respondErr := handler.Respond(ctx, rv); respondErr != nil {
				logger.ErrorContext(
					ctx,
					"error responding to component interaction",
					tint.Err(respondErr),
				)
			}
		}
	case discordgo.InteractionApplicationCommand:
		commandName := i.ApplicationCommandData().Name

		cmdHandler, ok := t.commandHandlers[commandName]
		if !ok {
			logger.WarnContext(ctx, "unknown command", "command", commandName)
			return
		}

		if ackErr := handler.Respond(
			ctx,
			t.discord.ackResponse(commandName),
		); ackErr != nil {
			logger.ErrorContext(ctx, "error acknowledging interaction", tint.Err(ackErr))
			return
		}

		u, _, userErr := t.writeDB.GetOrCreateUser(ctx, *discordUser)
		if userErr != nil {
			logger.ErrorContext(ctx, "error getting user", tint.Err(userErr))
			wg.Add(1)
			go func() {
				defer wg.Done()
				handler.Delete(ctx)
			}()
			return
		}

		logger = logger.With(slog.Group("user", userLogAttrs(*u)...))
		ctx = WithLogger(ctx, logger)

		t.commandsInProgress.Add(1)
		defer t.commandsInProgress.Add(-1)
		cmdHandler(ctx, handler, u)
	default:
		logger.WarnContext(
			ctx,
			"unhandled interaction type",
			"type", i.Type.String(),
		)
	}
}

// editWithError replaces the deferred interaction response with a
// generic failure message.
func (t *TagHerald) editWithError(
	ctx context.Context,
	handler InteractionHandler,
) {
	errMsg := DefaultDiscordErrorMessage
	if _, err := handler.Edit(
		ctx,
		&discordgo.WebhookEdit{Content: &errMsg},
		discordgo.WithContext(ctx),
	); err != nil {
		handler.Logger().ErrorContext(
			ctx,
			"error updating interaction",
			tint.Err(err),
		)
	}
}

func (t *TagHerald) shutdown(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	t.logger.WarnContext(ctx, "shutting down")
	defer func() {
		if t.eventShutdown != nil {
			go func() {
				t.eventShutdown <- struct{}{}
			}()
		}
	}()

	shutdownStart := time.Now()
	shutdownTimeout := t.config.ShutdownTimeout

	closeCtx, closeCancel := context.WithDeadline(
		context.Background(),
		shutdownStart.Add(shutdownTimeout),
	)
	defer closeCancel()

	gracefulShutdownCh := make(chan struct{}, 1)
	go func() {
		// wait for in-flight interaction/thread handlers
		runtimeWG.Wait()

		if t.discord.session != nil {
			t.logger.InfoContext(ctx, "closing discord session")
			_ = t.discord.session.Close()
			t.logger.InfoContext(ctx, "discord session closed")
			for _, h := range t.discord.discordgoRemoveHandlerFuncs {
				h()
			}
		}
		gracefulShutdownCh <- struct{}{}
	}()

	select {
	case <-gracefulShutdownCh:
		shutdownEnded := time.Now()
		t.logger.InfoContext(
			ctx,
			"shutdown complete",
			"shutdown_ended", shutdownEnded,
			"shutdown_duration", shutdownEnded.Sub(shutdownStart),
		)
		return nil
	case <-closeCtx.Done():
		t.logger.Warn("in-flight handlers did not stop in time, forcing close")
		if t.discord.session != nil {
			go func() {
				_ = t.discord.session.Close()
			}()
		}
		return fmt.Errorf("graceful shutdown timed out")
	}
}
