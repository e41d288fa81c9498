package reminders

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/guilds"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsRemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clanbot_reminders_sent_total",
		Help: "Event reminders posted",
	})

	metricsScanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clanbot_reminder_scan_errors_total",
		Help: "Guilds or events that failed during a reminder scan",
	})
)

// lookahead is how far ahead events are listed before the window filter is applied
const lookahead = 24 * time.Hour

// ScanReport summarizes one scan
type ScanReport struct {
	Guilds  int
	Sent    int
	Skipped int
	Failed  int
}

// Scanner posts a reminder for events starting in Lead +/- Window, each event is reminded at most once per
// scheduled start time
type Scanner struct {
	Guilds  *guilds.Store
	Events  *events.Store
	RSVPs   events.RSVPCounter
	Session bot.Session

	Lead   time.Duration
	Window time.Duration
}

func NewScanner(guildStore *guilds.Store, eventStore *events.Store, rsvps events.RSVPCounter, session bot.Session, lead, window time.Duration) *Scanner {
	return &Scanner{
		Guilds:  guildStore,
		Events:  eventStore,
		RSVPs:   rsvps,
		Session: session,
		Lead:    lead,
		Window:  window,
	}
}

// InWindow returns true if startsAt is between lead-window and lead+window from now, both ends included
func InWindow(startsAt, now time.Time, lead, window time.Duration) bool {
	until := startsAt.Sub(now)
	return until >= lead-window && until <= lead+window
}

// Scan checks every guild with a reminder channel, a failing guild doesn't stop the scan
func (s *Scanner) Scan(ctx context.Context, now time.Time) *ScanReport {
	report := &ScanReport{}

	targets, err := s.Guilds.ListReminderTargets(ctx)
	if err != nil {
		metricsScanErrors.Inc()
		logger.WithError(err).Error("failed listing reminder targets")
		return report
	}

	for _, g := range targets {
		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("reminder scan cancelled")
			break
		}

		report.Guilds++
		if err := s.scanGuild(ctx, g, now, report); err != nil {
			report.Failed++
			metricsScanErrors.Inc()
			logger.WithError(err).WithField("guild", g.GuildID).Error("failed scanning guild for reminders")
		}
	}

	return report
}

func (s *Scanner) scanGuild(ctx context.Context, g *guilds.GuildConfig, now time.Time, report *ScanReport) error {
	evs, err := s.Events.ListRange(ctx, g.GuildID, now, now.Add(lookahead))
	if err != nil {
		return err
	}

	for _, ev := range evs {
		if !InWindow(ev.StartsAt, now, s.Lead, s.Window) {
			continue
		}

		if ev.RemindedAt.Valid {
			report.Skipped++
			continue
		}

		claimed, err := s.Events.MarkReminded(ctx, g.GuildID, ev.ID, now)
		if err != nil {
			return err
		}

		if !claimed {
			// another scan got to it first
			report.Skipped++
			continue
		}

		if err := s.send(ctx, g, ev); err != nil {
			report.Failed++
			metricsScanErrors.Inc()
			logger.WithError(err).WithField("guild", g.GuildID).WithField("event", ev.ID).Error("failed sending event reminder")

			if err := s.Events.ClearReminded(ctx, g.GuildID, ev.ID); err != nil {
				logger.WithError(err).WithField("guild", g.GuildID).WithField("event", ev.ID).Error("failed releasing reminder claim")
			}
			continue
		}

		report.Sent++
		metricsRemindersSent.Inc()
		logger.WithField("guild", g.GuildID).WithField("event", ev.ID).Info("sent event reminder")
	}

	return nil
}

func (s *Scanner) send(ctx context.Context, g *guilds.GuildConfig, ev *events.Event) error {
	var counts *events.RSVPCounts
	if s.RSVPs != nil {
		var err error
		counts, err = s.RSVPs.CountsForEvent(ctx, g.GuildID, ev.ID)
		if err != nil {
			return err
		}
	}

	_, err := s.Session.ChannelMessageSendComplex(bot.FormatID(g.ReminderChannelID.Int64), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{ReminderEmbed(ev, counts, g.Location())},
		Components: events.RSVPComponents(ev),
	})
	return errors.WithMessage(err, "send reminder")
}

// ReminderEmbed is the event embed with the start time spelled out in the guild's timezone
func ReminderEmbed(ev *events.Event, counts *events.RSVPCounts, loc *time.Location) *discordgo.MessageEmbed {
	embed := events.EventEmbed(ev, counts)
	embed.Title = "⏰ Starting soon: " + ev.Name
	embed.Author = &discordgo.MessageEmbedAuthor{Name: "Event reminder"}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Local time",
		Value: ev.StartsAt.In(loc).Format(events.DateLayout) + " " + loc.String(),
	})
	embed.Color = bot.EmbedColorSuccess
	return embed
}
