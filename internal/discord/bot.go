// Package discord hosts voxline on Discord: one text channel is one
// conversation, voice lines go out as audio file attachments.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/voxline/internal/catalog"
	"github.com/keshon/voxline/internal/config"
	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/internal/schedule"
	"github.com/keshon/voxline/pkg/retrylimit"
)

// Bot is the Discord front end.
type Bot struct {
	dg        *discordgo.Session
	settings  *config.SettingsStore
	engine    *engine.Engine
	scheduler *schedule.Scheduler
	pool      *schedule.Pool
	catalog   *catalog.Catalog
	selector  *engine.Selector
	log       zerolog.Logger
}

// Deps carries everything the bot needs; all fields are required. The
// session is created by the caller so the dispatch pool can share it.
type Deps struct {
	Session   *discordgo.Session
	Settings  *config.SettingsStore
	Engine    *engine.Engine
	Scheduler *schedule.Scheduler
	Pool      *schedule.Pool
	Catalog   *catalog.Catalog
	Selector  *engine.Selector
	Log       zerolog.Logger
}

// StartBot runs the bot until ctx is canceled.
func StartBot(ctx context.Context, d Deps) error {
	b := &Bot{
		dg:        d.Session,
		settings:  d.Settings,
		engine:    d.Engine,
		scheduler: d.Scheduler,
		pool:      d.Pool,
		catalog:   d.Catalog,
		selector:  d.Selector,
		log:       d.Log,
	}
	return b.run(ctx)
}

func (b *Bot) run(ctx context.Context) error {
	dg := b.dg

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	// Opening the gateway may hit transient network trouble at boot; unlike
	// message delivery, connecting is safe to retry.
	if err := retrylimit.WithRetry(ctx, retrylimit.DefaultRetryConfig(), dg.Open); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Int("voice_lines", b.catalog.Len()).
		Msg("bot is running")
}

// onMessageCreate routes chat traffic: own and bot messages are dropped,
// prefixed messages become commands, the rest must carry a trigger keyword
// before the engine sees them.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	snap := b.settings.Snapshot()
	content := strings.TrimSpace(m.Content)

	if strings.HasPrefix(content, snap.CommandPrefix) {
		b.handleCommand(s, m, strings.TrimSpace(strings.TrimPrefix(content, snap.CommandPrefix)))
		return
	}

	if !b.triggered(content, snap.TriggerKeywords) {
		return
	}

	req, err := b.engine.OnMessage(m.ChannelID, content, time.Now())
	if err != nil {
		b.log.Warn().Err(err).Str("channel", m.ChannelID).Msg("reactive path failed")
		return
	}
	if req == nil {
		return
	}
	if err := b.pool.Enqueue(*req, snap.DispatchTimeout.Std()); err != nil {
		b.log.Warn().Err(err).Str("channel", m.ChannelID).Msg("reactive delivery dropped")
	}
}

// triggered reports whether content names the character (or mentions the bot
// user by keyword). Matching is case-insensitive substring, which also covers
// CJK text without word boundaries.
func (b *Bot) triggered(content string, keywords []string) bool {
	lowered := strings.ToLower(content)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
