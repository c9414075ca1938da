package utils

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"go.uber.org/zap"
)

// EmailSender 分享通知邮件发送器
// SMTP 未配置时所有发送都是 no-op,分享流程不因此失败
type EmailSender struct {
	cfg *config.SMTPConfig
}

func NewEmailSender(cfg *config.SMTPConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

// Enabled 是否配置了 SMTP
func (s *EmailSender) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Host != ""
}

// SendShareNotification 通知被分享者有新的分享
func (s *EmailSender) SendShareNotification(to, ownerName, itemName, permission string) error {
	if !s.Enabled() {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{to}
	e.Subject = fmt.Sprintf("%s 向你分享了 %s", ownerName, itemName)
	e.Text = []byte(fmt.Sprintf("%s 向你分享了 %q,权限: %s。登录后即可查看。", ownerName, itemName, permission))

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := e.Send(addr, auth); err != nil {
		logger.Error("SendShareNotification: Failed to send email", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("发送分享通知邮件失败: %w", err)
	}
	return nil
}
