package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/unibuild/controller/model"
)

func (d *Dispatcher) sendEmail(cfg *model.EmailConfig, n model.BuildNotification) error {
	if len(cfg.Recipients) == 0 {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(cfg.Recipients, ", "))
	fmt.Fprintf(&body, "Subject: [%s] %s\r\n", n.ProjectName, eventTitle(n))
	body.WriteString("\r\n")
	fmt.Fprintf(&body, "Project: %s\r\n", n.ProjectName)
	fmt.Fprintf(&body, "Branch: %s\r\n", n.Branch)
	fmt.Fprintf(&body, "Status: %s\r\n", n.Status)
	if n.TriggeredBy != "" {
		fmt.Fprintf(&body, "Triggered by: %s\r\n", n.TriggeredBy)
	}
	if n.DurationSeconds > 0 {
		fmt.Fprintf(&body, "Duration: %ds\r\n", n.DurationSeconds)
	}
	if n.ErrorMessage != "" {
		fmt.Fprintf(&body, "Error: %s\r\n", n.ErrorMessage)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return smtp.SendMail(addr, auth, cfg.From, cfg.Recipients, []byte(body.String()))
}
