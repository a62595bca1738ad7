package worker_service

import (
	"fmt"

	"github.com/retouchlab/support-chat/config"
	"github.com/retouchlab/support-chat/internal/utils/types"
	"gopkg.in/gomail.v2"
)

func SendMessageNotification(payload types.MessageNotificationPayload) error {
	host := config.Conf.SMTP.Host
	port := config.Conf.SMTP.Port
	username := config.Conf.SMTP.Username
	password := config.Conf.SMTP.Password
	from := config.Conf.SMTP.From

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", payload.Recipients...)
	m.SetHeader("Subject", fmt.Sprintf("New support message from %s", payload.SenderName))
	m.SetBody("text/plain", fmt.Sprintf(
		"%s wrote at %s:\n\n%s\n\nOpen the support console to reply.",
		payload.SenderName, payload.SentAt.Format("15:04 MST"), payload.Preview))

	d := gomail.NewDialer(host, port, username, password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	return nil
}
