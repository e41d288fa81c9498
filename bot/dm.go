package bot

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var metricsDMsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "clanbot_dms_sent_total",
	Help: "Direct messages successfully delivered",
})

var metricsDMFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "clanbot_dm_failures_total",
	Help: "Direct messages that could not be delivered",
})

// DeliveryReport summarizes a direct message batch
type DeliveryReport struct {
	Sent   int
	Failed []*common.DeliveryError
}

func (d *DeliveryReport) Total() int {
	return d.Sent + len(d.Failed)
}

// DMSender sends direct messages to many users, paced by a rate limiter
type DMSender struct {
	Session Session
	Limiter *rate.Limiter
}

func NewDMSender(session Session, interval time.Duration) *DMSender {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &DMSender{
		Session: session,
		Limiter: rate.NewLimiter(limit, 1),
	}
}

// SendDM sends msg to a single user
func (d *DMSender) SendDM(userID int64, msg *discordgo.MessageSend) error {
	channel, err := d.Session.UserChannelCreate(FormatID(userID))
	if err != nil {
		return errors.WithMessage(err, "create dm channel")
	}

	_, err = d.Session.ChannelMessageSendComplex(channel.ID, msg)
	return errors.WithMessage(err, "send dm")
}

// SendAll sends msg to every user, failures are collected in the report and never stop the batch,
// only a cancelled context does
func (d *DMSender) SendAll(ctx context.Context, userIDs []int64, msg *discordgo.MessageSend) *DeliveryReport {
	report := &DeliveryReport{}

	for i, userID := range userIDs {
		if err := d.Limiter.Wait(ctx); err != nil {
			for _, remaining := range userIDs[i:] {
				report.Failed = append(report.Failed, &common.DeliveryError{UserID: remaining, Err: err})
			}
			metricsDMFailures.Add(float64(len(userIDs) - i))
			break
		}

		err := d.SendDM(userID, msg)
		if err != nil {
			logger.WithError(err).WithField("user", userID).Debug("failed sending dm")
			report.Failed = append(report.Failed, &common.DeliveryError{UserID: userID, Err: err})
			metricsDMFailures.Inc()
			continue
		}

		report.Sent++
		metricsDMsSent.Inc()
	}

	return report
}

// IsDMsDisabled returns true if the error is discord refusing to deliver a dm to the user
func IsDMsDisabled(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser
	}
	return false
}
