package email

import (
	"context"
	"errors"
)

// Sender define la interfaz de envio de correos del ciclo de vida de cuentas.
// Todas las llamadas desde el nucleo son best-effort: un fallo aqui nunca
// debe fallar la operacion principal.
type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
	SendWelcomeEmail(ctx context.Context, toEmail, name string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) fail() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendVerificationEmail(_ context.Context, _, _ string) error {
	return s.fail()
}

func (s *disabledSender) SendPasswordResetEmail(_ context.Context, _, _ string) error {
	return s.fail()
}

func (s *disabledSender) SendWelcomeEmail(_ context.Context, _, _ string) error {
	return s.fail()
}
