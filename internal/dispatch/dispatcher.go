// internal/dispatch/dispatcher.go

// Package dispatch fans one dispatch request out across delivery channels:
// render the template once, then gate each channel through the preference
// resolver and hand the rendered content to the channel's transport.
package dispatch

import (
	"context"
	"time"

	"notification-hub/internal/common/config"
	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/common/logger"
	"notification-hub/internal/common/metrics"
	"notification-hub/internal/common/observability"
	"notification-hub/internal/models"
	"notification-hub/internal/preference"
	"notification-hub/internal/realtime"
	"notification-hub/internal/storage"
	"notification-hub/internal/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// SESService and SNSService mirror the AWS client surface used here, for
// mocking in tests.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Recipient identifies one delivery target and its contact points. Email and
// Phone may be empty; channels without a contact point are skipped.
type Recipient struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// Request is one dispatch: a template, its variable bindings and the
// recipients to deliver to.
type Request struct {
	TemplateID string                 `json:"templateId"`
	Variables  map[string]interface{} `json:"variables"`
	Recipients []Recipient            `json:"recipients"`
}

// Result summarizes what happened per recipient and channel.
type Result struct {
	NotificationID string            `json:"notificationId"`
	UserID         string            `json:"userId"`
	Channels       map[string]string `json:"channels"`
	DispatchedAt   string            `json:"dispatchedAt"`
}

// Channel delivery statuses.
const (
	StatusSent      = "sent"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusScheduled = "scheduled"
)

// Dispatcher delivers rendered notifications over every enabled channel.
type Dispatcher struct {
	cfg           config.NotificationConfig
	renderer      *template.Renderer
	templates     *storage.TemplateRepo
	notifications *storage.NotificationRepo
	index         *storage.NotificationIndex
	prefs         *preference.Service
	hub           *realtime.Hub
	sesClient     SESService
	snsClient     SNSService
	obs           *observability.Observability
	tracing       *observability.Tracing
	log           logger.Logger
	now           func() time.Time
}

// New creates a dispatcher. index, obs and tracing may be nil.
func New(
	cfg config.NotificationConfig,
	templates *storage.TemplateRepo,
	notifications *storage.NotificationRepo,
	index *storage.NotificationIndex,
	prefs *preference.Service,
	hub *realtime.Hub,
	sesClient SESService,
	snsClient SNSService,
	obs *observability.Observability,
	tracing *observability.Tracing,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:           cfg,
		renderer:      template.NewRenderer(),
		templates:     templates,
		notifications: notifications,
		index:         index,
		prefs:         prefs,
		hub:           hub,
		sesClient:     sesClient,
		snsClient:     snsClient,
		obs:           obs,
		tracing:       tracing,
		log:           log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		now:           time.Now,
	}
}

// Dispatch renders the template and delivers it to every recipient. Template
// lookup failure fails the whole request; per-channel delivery failures are
// recorded in the result and logged but do not stop the fan-out.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) ([]Result, error) {
	tmpl, err := d.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if warnings := template.Validate(tmpl, req.Variables); len(warnings) > 0 {
		for _, w := range warnings {
			d.log.Warn("template warning", map[string]interface{}{
				"templateId": tmpl.ID,
				"code":       w.Code,
				"variable":   w.Variable,
			})
		}
	}

	if !tmpl.Scheduling.Immediate && tmpl.Scheduling.DelayMinutes > 0 {
		return d.schedule(ctx, tmpl, req), nil
	}
	return d.deliver(ctx, tmpl, req), nil
}

// schedule defers delivery by the template's delay. The timer outlives the
// request context on purpose; a hub shutdown abandons pending timers.
func (d *Dispatcher) schedule(ctx context.Context, tmpl *models.NotificationTemplate, req *Request) []Result {
	delay := time.Duration(tmpl.Scheduling.DelayMinutes) * time.Minute
	time.AfterFunc(delay, func() {
		deliverCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.deliver(deliverCtx, tmpl, req)
	})

	results := make([]Result, 0, len(req.Recipients))
	dispatchedAt := d.now().UTC().Format(time.RFC3339)
	for _, recipient := range req.Recipients {
		channels := make(map[string]string, len(tmpl.Channels))
		for _, ch := range tmpl.Channels {
			channels[ch] = StatusScheduled
		}
		results = append(results, Result{
			NotificationID: uuid.NewString(),
			UserID:         recipient.UserID,
			Channels:       channels,
			DispatchedAt:   dispatchedAt,
		})
	}

	d.log.Info("dispatch scheduled", map[string]interface{}{
		"templateId":   tmpl.ID,
		"delayMinutes": tmpl.Scheduling.DelayMinutes,
		"recipients":   len(req.Recipients),
	})
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, tmpl *models.NotificationTemplate, req *Request) []Result {
	rendered := d.renderer.Render(tmpl, req.Variables)
	now := d.now().UTC()

	results := make([]Result, 0, len(req.Recipients))
	for _, recipient := range req.Recipients {
		results = append(results, d.deliverTo(ctx, tmpl, rendered, recipient, now))
	}
	return results
}

func (d *Dispatcher) deliverTo(ctx context.Context, tmpl *models.NotificationTemplate, rendered template.Rendered, recipient Recipient, now time.Time) Result {
	prefs, err := d.prefs.Get(ctx, recipient.UserID)
	if err != nil {
		d.log.Warn("preference load failed, using defaults", map[string]interface{}{
			"userId": recipient.UserID,
			"error":  err.Error(),
		})
		prefs = preference.Defaults(recipient.UserID)
	}

	priority := priorityFor(tmpl)
	result := Result{
		NotificationID: uuid.NewString(),
		UserID:         recipient.UserID,
		Channels:       make(map[string]string, len(tmpl.Channels)),
		DispatchedAt:   now.Format(time.RFC3339),
	}

	for _, channel := range tmpl.Channels {
		if !models.ValidChannel(channel) {
			result.Channels[channel] = StatusSkipped
			continue
		}
		if !preference.ShouldDeliver(tmpl.Type, priority, channel, prefs, now) {
			result.Channels[channel] = StatusSkipped
			metrics.DeliveriesTotal.WithLabelValues(channel, StatusSkipped).Inc()
			continue
		}

		deliverCtx := ctx
		var span trace.Span
		if d.tracing != nil {
			deliverCtx, span = d.tracing.StartSpan(ctx, "dispatch.deliver", tmpl.Type, channel)
		}

		start := d.now()
		err := d.deliverChannel(deliverCtx, channel, tmpl, rendered, recipient, priority, result.NotificationID, now)
		elapsed := d.now().Sub(start)
		if span != nil {
			span.End()
		}

		status := StatusSent
		if err != nil {
			status = StatusFailed
			d.log.Error("channel delivery failed", map[string]interface{}{
				"channel": channel,
				"userId":  recipient.UserID,
				"error":   err.Error(),
			})
		}

		result.Channels[channel] = status
		metrics.DeliveriesTotal.WithLabelValues(channel, status).Inc()
		metrics.DeliveryDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
		if d.obs != nil {
			d.obs.RecordDispatch(ctx, channel, status)
			d.obs.RecordDispatchDuration(ctx, elapsed, channel)
		}
	}

	return result
}

func (d *Dispatcher) deliverChannel(ctx context.Context, channel string, tmpl *models.NotificationTemplate, rendered template.Rendered, recipient Recipient, priority, notificationID string, now time.Time) error {
	switch channel {
	case models.ChannelInApp, models.ChannelPush:
		return d.deliverInApp(ctx, channel, tmpl, rendered, recipient, priority, notificationID, now)
	case models.ChannelEmail:
		return d.deliverEmail(ctx, rendered, recipient)
	case models.ChannelSMS:
		return d.deliverSMS(ctx, rendered, recipient, priority)
	}
	return nil
}

// deliverInApp persists the notification, mirrors it into the search index
// and pushes notification:new plus the refreshed unread count to the user's
// live sessions.
func (d *Dispatcher) deliverInApp(ctx context.Context, channel string, tmpl *models.NotificationTemplate, rendered template.Rendered, recipient Recipient, priority, notificationID string, now time.Time) error {
	n := &models.Notification{
		ID:        notificationID,
		UserID:    recipient.UserID,
		Type:      tmpl.Type,
		Title:     rendered.Title,
		Message:   rendered.Message,
		Priority:  priority,
		Channel:   channel,
		Status:    models.StatusUnread,
		CreatedAt: now,
		Metadata: map[string]interface{}{
			"templateId":      tmpl.ID,
			"templateVersion": tmpl.Version,
		},
	}

	if err := d.notifications.Insert(ctx, n); err != nil {
		return err
	}
	if d.index != nil {
		if err := d.index.Index(ctx, n); err != nil {
			d.log.Warn("search index write failed", map[string]interface{}{
				"notificationId": n.ID,
				"error":          err.Error(),
			})
		}
	}

	if env, err := models.NewEnvelope(models.EventNotificationNew, n); err == nil {
		d.hub.BroadcastTo(recipient.UserID, env)
	}

	count, err := d.notifications.UnreadCount(ctx, recipient.UserID)
	if err == nil {
		if env, err := models.NewEnvelope(models.EventNotificationCount, models.CountEventPayload{UnreadCount: count}); err == nil {
			d.hub.BroadcastTo(recipient.UserID, env)
		}
	}
	return nil
}

func (d *Dispatcher) deliverEmail(ctx context.Context, rendered template.Rendered, recipient Recipient) error {
	if !d.cfg.Email.Enabled || recipient.Email == "" {
		return nil
	}

	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{recipient.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(rendered.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(rendered.Message)},
				Html: &sestypes.Content{Data: aws.String(rendered.Message)},
			},
		},
		Source: aws.String(d.cfg.Email.FromEmail),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailed(err.Error())
	}
	return nil
}

// deliverSMS publishes over SNS. SMS only fires at or above the configured
// priority threshold regardless of preferences; it is the most intrusive
// channel.
func (d *Dispatcher) deliverSMS(ctx context.Context, rendered template.Rendered, recipient Recipient, priority string) error {
	if !d.cfg.SMS.Enabled || recipient.Phone == "" {
		return nil
	}
	threshold := d.cfg.SMS.PriorityThreshold
	if threshold == "" {
		threshold = models.PriorityHigh
	}
	if !models.PriorityAtLeast(priority, threshold) {
		return nil
	}

	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(recipient.Phone),
		Message:     aws.String(rendered.Message),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailed(err.Error())
	}
	return nil
}

// priorityFor maps a template onto a notification priority. Templates carry
// no explicit priority, so it derives from the category with medium as the
// default.
func priorityFor(tmpl *models.NotificationTemplate) string {
	switch tmpl.Category {
	case "alert", "security":
		return models.PriorityUrgent
	case "action_required":
		return models.PriorityHigh
	case "promotional", "newsletter":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}
