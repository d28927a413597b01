package notify

import (
	"context"
	"fmt"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// connectIMAP dials the IMAP server and logs in. The caller must log out.
func (m *Mailer) connectIMAP(_ context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(m.cfg.IMAPHost, m.cfg.IMAPPort)

	var client *imapclient.Client
	var err error
	if m.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(m.cfg.Username, m.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", m.cfg.Username, err)
	}

	return client, nil
}

// appendSent stores msg in the sent mailbox, flagged as seen.
func (m *Mailer) appendSent(ctx context.Context, msg []byte) error {
	client, err := m.connectIMAP(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	cmd := client.Append(m.sentMailbox(), int64(len(msg)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  m.now(),
	})
	if _, err := cmd.Write(msg); err != nil {
		return fmt.Errorf("writing message to %s: %w", m.sentMailbox(), err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", m.sentMailbox(), err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", m.sentMailbox(), err)
	}
	return nil
}

// ValidateConnection verifies the IMAP credentials by logging in and
// selecting the sent mailbox.
func (m *Mailer) ValidateConnection(ctx context.Context) error {
	client, err := m.connectIMAP(ctx)
	if err != nil {
		return fmt.Errorf("validating mail connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.sentMailbox(), nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", m.sentMailbox(), err)
	}
	return nil
}

func (m *Mailer) sentMailbox() string {
	if m.cfg.SentMailbox != "" {
		return m.cfg.SentMailbox
	}
	return "Sent"
}
