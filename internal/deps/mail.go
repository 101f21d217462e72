package deps

import (
	"context"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

type MailConfig struct {
	Host string
	Port int
	User string
	Pass string

	// ImplicitTLS dials straight into TLS (SMTPS). Otherwise STARTTLS is
	// used when the server offers it.
	ImplicitTLS bool
}

const mailTimeout = 5 * time.Second

// MailVerifier checks that the SMTP relay accepts a session. Each Ping opens
// and closes its own connection.
type MailVerifier struct {
	client *mail.Client
}

func NewMailVerifier(c MailConfig) (*MailVerifier, error) {
	opts := []mail.Option{
		mail.WithPort(c.Port),
		mail.WithTimeout(mailTimeout),
	}
	if c.ImplicitTLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if c.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.User),
			mail.WithPassword(c.Pass),
		)
	}

	client, err := mail.NewClient(c.Host, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create mail client")
	}
	return &MailVerifier{client: client}, nil
}

// Ping dials, greets (and authenticates when credentials are set), then
// quits. Each call owns its session, so concurrent pings never share one.
func (v *MailVerifier) Ping(ctx context.Context) error {
	if v == nil || v.client == nil {
		return xerrors.New("mail client not configured")
	}
	sc, err := v.client.DialToSMTPClientWithContext(ctx)
	if err != nil {
		return err
	}
	return v.client.CloseWithSMTPClient(sc)
}
