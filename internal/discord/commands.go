package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/voxline/internal/config"
	"github.com/keshon/voxline/internal/engine"
)

const embedColor = 0x7a4bd6

// handleCommand executes one prefixed chat command. args is the message with
// the prefix already stripped.
func (b *Bot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	fields := strings.Fields(args)
	cmd := "help"
	if len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}

	var err error
	switch cmd {
	case "enable":
		err = b.setEnabled(s, m.ChannelID, true)
	case "disable":
		err = b.setEnabled(s, m.ChannelID, false)
	case "status":
		err = b.sendStatus(s, m.ChannelID)
	case "tags":
		err = b.sendTags(s, m.ChannelID)
	case "voice":
		tag := ""
		if len(fields) > 1 {
			tag = fields[1]
		}
		err = b.playVoice(s, m.ChannelID, tag)
	case "schedule":
		sub := ""
		if len(fields) > 1 {
			sub = strings.ToLower(fields[1])
		}
		err = b.handleSchedule(s, m.ChannelID, sub)
	default:
		err = b.sendHelp(s, m.ChannelID)
	}

	if err != nil {
		b.log.Warn().Err(err).Str("command", cmd).Str("channel", m.ChannelID).Msg("command failed")
		b.reply(s, m.ChannelID, fmt.Sprintf("Command failed: %v", err))
	}
}

func (b *Bot) reply(s *discordgo.Session, channelID, text string) {
	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Description: text,
		Color:       embedColor,
	})
	if err != nil {
		b.log.Warn().Err(err).Str("channel", channelID).Msg("reply failed")
	}
}

func (b *Bot) setEnabled(s *discordgo.Session, channelID string, enabled bool) error {
	if err := b.settings.Update(func(st *config.Settings) { st.Enabled = enabled }); err != nil {
		return err
	}
	if enabled {
		b.reply(s, channelID, "Voice responses enabled.")
	} else {
		b.reply(s, channelID, "Voice responses disabled.")
	}
	return nil
}

func (b *Bot) sendStatus(s *discordgo.Session, channelID string) error {
	snap := b.settings.Snapshot()
	now := time.Now()

	fields := []*discordgo.MessageEmbedField{
		{Name: "Enabled", Value: fmt.Sprintf("%v", snap.Enabled), Inline: true},
		{Name: "Voice lines", Value: fmt.Sprintf("%d", b.catalog.Len()), Inline: true},
		{Name: "Mood", Value: string(b.engine.Moods().Mood(channelID, now)), Inline: true},
	}

	if st, ok := b.scheduler.Status(channelID); ok {
		val := "off"
		if st.Enabled {
			val = "on"
			if !st.NextFire.IsZero() {
				val = fmt.Sprintf("on, next fire %s", st.NextFire.Format("Mon 15:04"))
			}
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Schedule", Value: val})
	}

	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:  "voxline status",
		Color:  embedColor,
		Fields: fields,
	})
	return err
}

func (b *Bot) sendTags(s *discordgo.Session, channelID string) error {
	tags := b.catalog.Tags()
	if len(tags) == 0 {
		b.reply(s, channelID, "The voice catalog is empty.")
		return nil
	}
	var sb strings.Builder
	for _, tc := range tags {
		fmt.Fprintf(&sb, "`%s` — %d\n", tc.Tag, tc.Lines)
	}
	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "Voice tags",
		Description: sb.String(),
		Color:       embedColor,
	})
	return err
}

// playVoice is the manual path: pick a line (optionally by tag) and deliver
// it, bypassing mood and cooldown gates.
func (b *Bot) playVoice(s *discordgo.Session, channelID, tag string) error {
	line, err := b.selector.Select(tag, nil, time.Now())
	if err != nil {
		return err
	}
	req := engine.DispatchRequest{VoiceLineID: line.ID, SessionID: channelID}
	return b.pool.Enqueue(req, b.settings.Snapshot().DispatchTimeout.Std())
}

func (b *Bot) handleSchedule(s *discordgo.Session, channelID, sub string) error {
	switch sub {
	case "on":
		if err := b.scheduler.EnableTarget(channelID, nil); err != nil {
			return err
		}
		b.reply(s, channelID, "Scheduled voice lines enabled for this channel.")
	case "off":
		if err := b.scheduler.DisableTarget(channelID); err != nil {
			return err
		}
		b.reply(s, channelID, "Scheduled voice lines disabled for this channel.")
	case "reset":
		if err := b.scheduler.ForgetTarget(channelID); err != nil {
			return err
		}
		b.reply(s, channelID, "Schedule history for this channel cleared.")
	default:
		b.reply(s, channelID, "Usage: schedule on | off | reset")
	}
	return nil
}

func (b *Bot) sendHelp(s *discordgo.Session, channelID string) error {
	snap := b.settings.Snapshot()
	p := snap.CommandPrefix
	help := fmt.Sprintf(
		"`%[1]s enable` / `%[1]s disable` — toggle voice responses\n"+
			"`%[1]s status` — engine and schedule state\n"+
			"`%[1]s tags` — list voice tags\n"+
			"`%[1]s voice [tag]` — play a voice line now\n"+
			"`%[1]s schedule on|off|reset` — scheduled lines in this channel",
		p,
	)
	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "voxline commands",
		Description: help,
		Color:       embedColor,
	})
	return err
}
