package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/nhle/citas/internal/app"
	"github.com/nhle/citas/internal/auth"
	"github.com/nhle/citas/internal/credential"
	"github.com/nhle/citas/internal/logging"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/notify"
	"github.com/nhle/citas/internal/reminder"
	"github.com/nhle/citas/internal/store"
	appsync "github.com/nhle/citas/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "citas:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := pflag.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML configuration file")
	setMailPassword := pflag.Bool("set-mail-password", false, "store the SMTP/IMAP password in the system keyring and exit")
	checkMail := pflag.Bool("check-mail", false, "log in to the configured IMAP server and exit")
	pflag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	creds := credential.New(model.ConfigDir())

	if *setMailPassword {
		return promptMailPassword(creds)
	}

	if *checkMail {
		password, err := mailPassword(creds)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := notify.New(cfg.Mail, password, nil).ValidateConnection(ctx); err != nil {
			return err
		}
		fmt.Println("Conexión de correo verificada.")
		return nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	reminders := reminder.New(s, s, reminder.WithLocation(loc))
	poller := appsync.New(reminders, cfg.Reminders.PollInterval)
	defer poller.Stop()

	if cfg.Mail.Enabled {
		password, err := mailPassword(creds)
		if err != nil {
			log.Warn().Err(err).Msg("mail delivery disabled: no password")
		} else {
			poller.SetDeliverer(notify.New(cfg.Mail, password, s))
		}
	}

	log.Info().
		Str("db", cfg.Database.Path).
		Dur("poll_interval", poller.Interval()).
		Str("location", loc.String()).
		Bool("mail", cfg.Mail.Enabled).
		Msg("starting")

	m := app.New(app.Services{
		Store:     s,
		Auth:      auth.NewService(s),
		Reminders: reminders,
		Poller:    poller,
		Location:  loc,
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// mailPassword returns CITAS_MAIL_PASSWORD when set, otherwise the
// password stored in the keyring.
func mailPassword(creds *credential.Store) (string, error) {
	if pw := os.Getenv("CITAS_MAIL_PASSWORD"); pw != "" {
		return pw, nil
	}
	return creds.Get(credential.MailPasswordKey)
}

func promptMailPassword(creds *credential.Store) error {
	var password string
	err := huh.NewInput().
		Title("Contraseña del correo").
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	if err != nil {
		return err
	}
	if password == "" {
		if err := creds.Delete(credential.MailPasswordKey); err != nil {
			return err
		}
		fmt.Println("Contraseña eliminada.")
		return nil
	}
	if err := creds.Set(credential.MailPasswordKey, password); err != nil {
		return err
	}
	fmt.Println("Contraseña guardada.")
	return nil
}
