package mailer

import (
	"fmt"

	"github.com/classmark/attendance/pkg/logger"
)

// DevMailer prints instead of sending. Default in development.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendPasswordResetEmail(toEmail, toName, resetURL, token string) error {
	logger.Info("[DEV MAIL] Password Reset Email",
		"to", toEmail,
		"name", toName,
		"reset_url", resetURL,
		"token", token,
	)

	fmt.Printf("\n"+
		"=================================================================\n"+
		"PASSWORD RESET EMAIL (DEV MODE)\n"+
		"=================================================================\n"+
		"To: %s (%s)\n"+
		"Subject: Reset your attendance account password\n"+
		"\n"+
		"Reset URL: %s\n"+
		"Token: %s\n"+
		"=================================================================\n\n",
		toEmail, toName, resetURL, token)

	return nil
}
