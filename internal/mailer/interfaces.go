package mailer

type Service interface {
	SendPasswordResetEmail(toEmail, toName, resetURL, token string) error
}
