package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/classyapps/securechat/internal/auth"
	"github.com/classyapps/securechat/internal/chat"
	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/config"
	"github.com/classyapps/securechat/internal/cryptox"
	"github.com/classyapps/securechat/internal/directory"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/keyvault"
	"github.com/classyapps/securechat/internal/logging"
	"github.com/classyapps/securechat/internal/models"
)

// App wires the services behind the REPL and holds the signed-in state.
type App struct {
	cfg       *config.Config
	store     docstore.Store
	log       logging.Logger
	clk       clock.Clock
	authSvc   *auth.Service
	directory *directory.Service
	reader    *bufio.Reader

	session  *auth.Session
	chatSvc  *chat.Service
	inbox    *chat.Inbox
	contacts []models.User

	openContact *models.User
	openCancel  docstore.CancelFunc
}

func NewApp(cfg *config.Config, store docstore.Store, log logging.Logger) *App {
	return &App{
		cfg:       cfg,
		store:     store,
		log:       log,
		clk:       clock.New(),
		authSvc:   auth.NewService(store, cfg.SecretKey, cfg.AccessTokenValidityDuration, log),
		directory: directory.NewService(store, log),
		reader:    bufio.NewReader(os.Stdin),
	}
}

// Run restores any persisted session and hands control to the REPL.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to securechat (type 'help' for commands)")
	a.restoreSession(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	_ = a.CloseChat(ctx)
	if a.inbox != nil {
		a.inbox.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) status() string {
	if a.session == nil {
		return ""
	}
	if a.openContact != nil {
		return a.session.DisplayName + ":" + a.openContact.DisplayName
	}
	return a.session.DisplayName
}

func (a *App) Register(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.authSvc.SignUp(ctx, email, string(password), name); err != nil {
		printlnFn("Registration failed:", err.Error())
		return err
	}
	printlnFn("Success! You can now login.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.authSvc.SignIn(ctx, email, string(password))
	if err != nil {
		printlnFn("Login failed:", err.Error())
		return err
	}

	if err := a.completeSignIn(ctx, session, password); err != nil {
		printlnFn("Could not unlock key vault:", err.Error())
		return err
	}

	if err := auth.SaveSession(a.cfg.SessionFile, session); err != nil {
		a.log.Warn(ctx, "failed to persist session", "err", err)
	}
	printlnFn("Login successful")
	return nil
}

// restoreSession resumes a persisted sign-in. The private key stays sealed
// with the account password, so resuming still asks for it once.
func (a *App) restoreSession(ctx context.Context) {
	session, err := auth.LoadSession(a.cfg.SessionFile)
	if err != nil {
		a.log.Warn(ctx, "failed to read session file", "err", err)
		return
	}
	if session == nil {
		return
	}
	if _, err := a.authSvc.ParseToken(session.Token); err != nil {
		a.log.Info(ctx, "stored session expired", "user", session.DisplayName)
		_ = auth.ClearSession(a.cfg.SessionFile)
		return
	}

	printlnFn("Welcome back,", session.DisplayName)
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return
	}
	defer common.WipeByteArray(password)

	if err := a.completeSignIn(ctx, session, password); err != nil {
		printlnFn("Could not unlock key vault:", err.Error())
	}
}

// completeSignIn unlocks the vault, publishes the public key per policy and
// starts the conversation aggregation for the signed-in user.
func (a *App) completeSignIn(ctx context.Context, session *auth.Session, password []byte) error {
	passphrase := append([]byte(nil), password...)
	vault := keyvault.New(filepath.Join(a.cfg.VaultDir, session.UserID), passphrase, a.log)
	pub, err := vault.EnsureKeyPair(ctx)
	if err != nil {
		return err
	}

	publish := a.cfg.RepublishKeyOnSignIn
	if !publish {
		existing, err := a.directory.LookupByID(ctx, session.UserID)
		if err != nil || existing == "" {
			publish = true
		}
	}
	if publish {
		if err := a.directory.Publish(ctx, session.UserID, pub); err != nil {
			a.log.Warn(ctx, "failed to publish public key", "err", err)
		}
	}

	codec := cryptox.NewCodec(vault)
	self := chat.Identity{ID: session.UserID, DisplayName: session.DisplayName}
	policy := chat.Policy{
		ArmOnSend:     a.cfg.SecretArmOnSend,
		SendLifetime:  a.cfg.SecretSendLifetime,
		ReadArmWindow: a.cfg.SecretReadArmWindow,
	}

	a.session = session
	a.chatSvc = chat.NewService(a.store, codec, a.directory, a.clk, policy, self, a.log)
	a.inbox = chat.NewInbox(a.store, codec, a.clk, self, a.log)

	contacts, err := a.directory.Contacts(ctx, session.UserID)
	if err != nil {
		a.log.Warn(ctx, "failed to load contacts", "err", err)
	}
	a.contacts = contacts
	a.inbox.Start(ctx, contacts)
	return nil
}

func (a *App) Contacts(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}

	contacts, err := a.directory.Contacts(ctx, a.session.UserID)
	if err != nil {
		printlnFn("Could not load contacts:", err.Error())
		return err
	}
	a.contacts = contacts

	if len(contacts) == 0 {
		printlnFn("No contacts yet")
		return nil
	}
	for _, c := range contacts {
		printlnFn(" ", c.DisplayName, "<"+c.Email+">")
	}
	return nil
}

func (a *App) Inbox(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}
	a.printSummaries(a.inbox.Current())
	return nil
}

func (a *App) Search(ctx context.Context, query string) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}
	a.printSummaries(chat.FilterSummaries(a.inbox.Current(), query))
	return nil
}

func (a *App) printSummaries(summaries []models.ConversationSummary) {
	if len(summaries) == 0 {
		printlnFn("No conversations")
		return
	}
	for _, s := range summaries {
		line := " " + s.Contact.DisplayName
		if s.HasMessage() {
			line += " | " + s.LastMessagePreview
			line += " | " + time.UnixMilli(s.LastMessageAtMillis).Format("15:04:05")
		}
		if s.HasUnread {
			line += " *"
		}
		printlnFn(line)
	}
}

func (a *App) OpenChat(ctx context.Context, name string) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}
	if name == "" {
		printlnFn("Usage: open <name>")
		return nil
	}

	contact := a.findContact(name)
	if contact == nil {
		// The directory may have grown since sign-in.
		if contacts, err := a.directory.Contacts(ctx, a.session.UserID); err == nil {
			a.contacts = contacts
			contact = a.findContact(name)
		}
	}
	if contact == nil {
		printlnFn("Unknown contact:", name)
		return nil
	}

	if err := a.CloseChat(ctx); err != nil {
		return err
	}

	msgs, cancel, err := a.chatSvc.Open(ctx, *contact)
	if err != nil {
		printlnFn("Could not open conversation:", err.Error())
		return err
	}
	a.openContact = contact
	a.openCancel = cancel

	go func() {
		for state := range msgs {
			for _, m := range state {
				printlnFn(renderMessage(m))
			}
			printlnFn("--")
		}
	}()
	return nil
}

func (a *App) findContact(name string) *models.User {
	for i := range a.contacts {
		if strings.EqualFold(a.contacts[i].DisplayName, name) {
			return &a.contacts[i]
		}
	}
	return nil
}

func renderMessage(m chat.DecryptedMessage) string {
	line := fmt.Sprintf("[%s] %s: %s",
		time.UnixMilli(m.SentAtMillis).Format("15:04:05"), m.SenderDisplayName, m.Text)
	if deadline, armed := m.Expiry.Deadline(); armed {
		line += fmt.Sprintf(" (self-destructs at %s)", time.UnixMilli(deadline).Format("15:04:05"))
	} else if m.Secret {
		line += " (secret)"
	}
	return line
}

func (a *App) Send(ctx context.Context, text string) error {
	return a.send(ctx, text, false)
}

func (a *App) SendSecret(ctx context.Context, text string) error {
	return a.send(ctx, text, true)
}

func (a *App) send(ctx context.Context, text string, secret bool) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}
	if a.openContact == nil {
		printlnFn("No open conversation, use: open <name>")
		return nil
	}
	if text == "" {
		printlnFn("Nothing to send")
		return nil
	}

	if err := a.chatSvc.Send(ctx, *a.openContact, text, secret); err != nil {
		printlnFn("Send failed:", err.Error())
		return err
	}
	return nil
}

func (a *App) CloseChat(ctx context.Context) error {
	if a.openCancel != nil {
		a.openCancel()
		a.openCancel = nil
		a.openContact = nil
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return nil
	}

	_ = a.CloseChat(ctx)
	if a.inbox != nil {
		a.inbox.Close()
		a.inbox = nil
	}
	if err := auth.ClearSession(a.cfg.SessionFile); err != nil {
		a.log.Warn(ctx, "failed to clear session file", "err", err)
	}

	a.session = nil
	a.chatSvc = nil
	a.contacts = nil
	printlnFn("Logged out")
	return nil
}
