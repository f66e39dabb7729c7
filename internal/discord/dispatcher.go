package discord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/pkg/retrylimit"
)

// Dispatcher sends voice lines as file attachments. The voice-line ID is the
// clip's path relative to the voices directory.
type Dispatcher struct {
	dg        *discordgo.Session
	voicesDir string
}

// NewDispatcher wraps a Discord session as an engine.Dispatcher.
func NewDispatcher(dg *discordgo.Session, voicesDir string) *Dispatcher {
	return &Dispatcher{dg: dg, voicesDir: voicesDir}
}

// Dispatch uploads the clip to the session's channel, bounded by ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, req engine.DispatchRequest) error {
	path := filepath.Join(d.voicesDir, filepath.FromSlash(req.VoiceLineID))
	f, err := os.Open(path)
	if err != nil {
		// A missing clip will not appear on retry.
		return retrylimit.Fatal(fmt.Errorf("open voice clip %s: %w", req.VoiceLineID, err))
	}
	defer f.Close()

	_, err = d.dg.ChannelFileSend(req.SessionID, filepath.Base(path), f, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send voice clip %s to %s: %w", req.VoiceLineID, req.SessionID, err)
	}
	return nil
}
