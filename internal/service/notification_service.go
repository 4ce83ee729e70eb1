package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"journey_backend/internal/config"
	"journey_backend/internal/model"
	"journey_backend/pkg/logger"
	"strings"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"
)

// ApprovalNotifier 审批通过后通知客户联系人
type ApprovalNotifier interface {
	NotifyApproved(a *model.Assessment, rec *model.ApprovalRecord) error
}

// NotificationService 邮件通知服务
type NotificationService struct {
	cfg *config.MailConfig
	// send 默认走 SMTP，测试中可替换
	send func(to []string, subject, html string) error
}

func NewNotificationService(cfg *config.MailConfig) *NotificationService {
	s := &NotificationService{cfg: cfg}
	s.send = s.sendSMTP
	return s
}

var approvedTemplate = template.Must(template.New("approved").Parse(`<p>Hello {{.Contact}},</p>
<p>The discovery questionnaire for <strong>{{.Company}}</strong> is ready for you to complete.</p>
{{if .Link}}<p><a href="{{.Link}}">Open the questionnaire</a></p>{{end}}
<p>Your answers are saved as you type, so you can come back to it at any time.</p>`))

func (s *NotificationService) NotifyApproved(a *model.Assessment, rec *model.ApprovalRecord) error {
	if a.ContactEmail == "" {
		return nil
	}
	if s.cfg.SMTPHost == "" || s.cfg.From == "" {
		logger.Log.Debug("SMTP not configured, skipping approval email",
			zap.String("assessment_id", a.ID))
		return nil
	}

	link := ""
	if s.cfg.PortalURL != "" {
		link = strings.TrimRight(s.cfg.PortalURL, "/") + "/assessments/" + a.ID
	}
	var body bytes.Buffer
	err := approvedTemplate.Execute(&body, map[string]string{
		"Contact": a.ContactName,
		"Company": a.CompanyName,
		"Link":    link,
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s: discovery questionnaire ready", a.CompanyName)
	return s.send([]string{a.ContactEmail}, subject, body.String())
}

func (s *NotificationService) sendSMTP(to []string, subject, html string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.SMTPHost,
		InsecureSkipVerify: s.cfg.SkipTLSVerify,
	}
	return d.DialAndSend(m)
}
