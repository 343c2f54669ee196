// Package notify tells operators about transfers that need manual reconciliation.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"github.com/sirupsen/logrus"
)

// Alerter is told when a transfer reached the chain only partially.
type Alerter interface {
	PartialTransfer(ctx context.Context, source string, submitted []string, cause error)
}

type Noop struct{}

func (Noop) PartialTransfer(context.Context, string, []string, error) {}

type sender interface {
	SendMailV31(data *mailjet.MessagesV31, options ...mailjet.RequestOptions) (*mailjet.ResultsV31, error)
}

type MailjetAlerter struct {
	client sender
	from   string
	to     string
}

// NewAlerter returns a Mailjet alerter, or Noop when the keys are not configured.
func NewAlerter(apiKey, secretKey, from, to string) Alerter {
	if apiKey == "" || secretKey == "" || to == "" {
		logrus.Warn("MAILJET_API_KEY, MAILJET_SECRET_KEY or alert.to not set, operator alerts disabled")
		return Noop{}
	}
	return &MailjetAlerter{client: mailjet.NewMailjetClient(apiKey, secretKey), from: from, to: to}
}

// PartialTransfer sends the alert synchronously. A cancelled ctx skips the send.
func (m *MailjetAlerter) PartialTransfer(ctx context.Context, source string, submitted []string, cause error) {
	if err := ctx.Err(); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"source": source, "submitted": submitted}).Error("mailjet: alert skipped")
		return
	}
	body := fmt.Sprintf(`<p>A fee transfer from <b>%s</b> failed after its principal was submitted.</p>
<p>Submitted transactions:</p><ul><li>%s</li></ul>
<p>Error: %s</p>
<p>The fee was not collected and must be reconciled manually.</p>`,
		source, strings.Join(submitted, "</li><li>"), cause)

	messages := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{
		{
			From:     &mailjet.RecipientV31{Email: m.from, Name: "Bean wallet"},
			To:       &mailjet.RecipientsV31{{Email: m.to}},
			Subject:  "Partial transfer needs reconciliation",
			HTMLPart: body,
		},
	}}
	if _, err := m.client.SendMailV31(messages); err != nil {
		logrus.WithError(err).WithField("source", source).Error("mailjet: alert not sent")
		return
	}
	logrus.WithFields(logrus.Fields{"source": source, "submitted": submitted}).Info("mailjet: partial transfer alert sent")
}
