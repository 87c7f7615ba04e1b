// Package notify fans out "file uploaded" events. Events go through the
// message queue when one is configured and are mailed directly otherwise.
package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/mailer"
	"github.com/edusphere/apiserver/internal/mq"
	"github.com/edusphere/apiserver/types"
)

// ErrDelivery is returned when the upload email could not be sent.
var ErrDelivery = errors.New("upload notification email not delivered")

// FileUploaded is the event payload published for every stored upload.
type FileUploaded struct {
	FileID   string `json:"fileId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
	Tag      string `json:"tag,omitempty"`
}

func eventOf(file types.File) FileUploaded {
	return FileUploaded{
		FileID:   file.ID,
		Name:     file.Name,
		Email:    file.Email,
		ImageURL: file.ImageURL,
		Tag:      file.Tag,
	}
}

// Direct mails the uploader in-line.
type Direct struct {
	sender mailer.Sender
}

func NewDirect(sender mailer.Sender) *Direct {
	return &Direct{sender: sender}
}

func (d *Direct) FileUploaded(ctx context.Context, file types.File) error {
	return d.deliver(ctx, eventOf(file))
}

func (d *Direct) deliver(ctx context.Context, event FileUploaded) error {
	subject, body, err := mailer.UploadEmail(event.Name, event.ImageURL)
	if err != nil {
		return err
	}
	if !d.sender.Send(ctx, event.Email, subject, body) {
		return ErrDelivery
	}
	return nil
}

// Publisher publishes upload events to a topic.
type Publisher struct {
	queue *mq.MQ
	topic string
}

func NewPublisher(queue *mq.MQ, topic string) *Publisher {
	return &Publisher{queue: queue, topic: topic}
}

func (p *Publisher) FileUploaded(ctx context.Context, file types.File) error {
	id, err := p.queue.PublishJSON(ctx, p.topic, eventOf(file))
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug().Str("message_id", id).Str("file_id", file.ID).Msg("upload event published")
	return nil
}

// Consumer mails uploaders for events read from a topic.
type Consumer struct {
	queue  *mq.MQ
	topic  string
	direct *Direct
	log    *logger.Logger
}

func NewConsumer(queue *mq.MQ, topic string, sender mailer.Sender, log *logger.Logger) *Consumer {
	return &Consumer{queue: queue, topic: topic, direct: NewDirect(sender), log: log}
}

// Run consumes until ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = c.log.WithContext(ctx)
	return c.queue.Subscribe(ctx, c.topic, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg mq.Message) error {
	var event FileUploaded
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Unreadable events would fail forever.
		c.log.Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed upload event")
		return nil
	}
	if err := c.direct.deliver(ctx, event); err != nil {
		c.log.Warn().Err(err).Str("message_id", msg.ID).Str("file_id", event.FileID).Msg("upload notification failed")
		return err
	}
	return nil
}
