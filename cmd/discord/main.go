package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/voxline/internal/catalog"
	"github.com/keshon/voxline/internal/config"
	"github.com/keshon/voxline/internal/discord"
	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/internal/logging"
	"github.com/keshon/voxline/internal/schedule"
	"github.com/keshon/voxline/internal/sentiment"
	"github.com/keshon/voxline/internal/storage"
	"github.com/keshon/voxline/internal/version"
	"github.com/keshon/voxline/pkg/jobmgr"
)

const moodFlushInterval = time.Minute

func main() {
	cfg, err := config.New()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		log.Fatal().Err(err).Msg("configuration error")
	}
	logging.Setup(logging.Config{Level: cfg.LogLevel, Dir: cfg.LogDir, Console: true})
	log.Info().Str("app", version.AppName).Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}

	settings, err := config.NewSettingsStore(cfg.SettingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load settings")
	}

	cat := catalog.New(store)
	lines, err := catalog.LoadIndex(cfg.VoicesDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.VoicesDir).Msg("load voice index")
	}
	if err := cat.SetLines(lines); err != nil {
		log.Fatal().Err(err).Msg("populate catalog")
	}
	log.Info().Int("voice_lines", cat.Len()).Msg("voice catalog loaded")

	moods := engine.NewMoodStore(settings.Snapshot().RecentWindow)
	if snaps, err := store.LoadMoodSnapshots(); err != nil {
		log.Warn().Err(err).Msg("mood restore failed, starting neutral")
	} else {
		moods.Restore(snaps)
	}

	selector := engine.NewSelector(cat, nil)
	eng := engine.New(
		sentiment.NewAnalyzer(),
		moods,
		selector,
		settings,
		log.With().Str("component", "engine").Logger(),
	)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Msg("create discord session")
	}

	snap := settings.Snapshot()
	pool := schedule.NewPool(
		discord.NewDispatcher(dg, cfg.VoicesDir),
		snap.DispatchWorkers,
		snap.DispatchRate,
		log.With().Str("component", "dispatch").Logger(),
	)

	scheduler, err := schedule.NewScheduler(
		settings, selector, pool, store, nil,
		log.With().Str("component", "schedule").Logger(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("load schedule targets")
	}

	jobs := jobmgr.NewManager(ctx, func(msg string) {
		log.Debug().Str("event", msg).Msg("job")
	})
	mustStart(jobs, "dispatch-pool", func(ctx context.Context) error {
		pool.Run(ctx)
		return nil
	})
	mustStart(jobs, "scheduler", func(ctx context.Context) error {
		scheduler.Run(ctx)
		return nil
	})
	mustStart(jobs, "settings-watch", settings.Watch)
	mustStart(jobs, "mood-flush", func(ctx context.Context) error {
		return flushMoods(ctx, store, moods)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- discord.StartBot(ctx, discord.Deps{
			Session:   dg,
			Settings:  settings,
			Engine:    eng,
			Scheduler: scheduler,
			Pool:      pool,
			Catalog:   cat,
			Selector:  selector,
			Log:       log.With().Str("component", "discord").Logger(),
		})
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("discord bot error")
		}
	}
	cancel()
	jobs.Wait()

	if err := store.SaveMoodSnapshots(moods.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("final mood save failed")
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("storage close failed")
	}
	log.Info().Msg("exited cleanly")
}

func mustStart(jobs *jobmgr.Manager, name string, runner func(ctx context.Context) error) {
	if err := jobs.Start(name, runner); err != nil {
		log.Fatal().Err(err).Str("job", name).Msg("start job")
	}
}

// flushMoods periodically persists mood snapshots so a crash loses at most
// one interval of soft state.
func flushMoods(ctx context.Context, store *storage.Storage, moods *engine.MoodStore) error {
	ticker := time.NewTicker(moodFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := store.SaveMoodSnapshots(moods.Snapshot()); err != nil {
				log.Warn().Err(err).Msg("mood flush failed")
			}
		}
	}
}
