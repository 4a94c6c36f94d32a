// Package session gates the rest of dbstudio behind a valid auth token.
package session

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/config"
	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"go.uber.org/zap"
)

// State is the result of a session check.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Navigator is how the guard sends the user to the login surface.
// The TUI opens or prints the URL; tests record it.
type Navigator interface {
	NavigateToLogin(loginURL string)
}

// Guard validates the presence of a session token. A missing token is
// terminal: the guard schedules one deferred navigation to the login
// surface and never polls for the token to appear.
type Guard struct {
	cfg       config.AuthConfig
	navigator Navigator
	log       *logging.Logger

	// after is time.AfterFunc, injectable for tests.
	after func(d time.Duration, f func()) *time.Timer
}

// NewGuard creates a session guard. logger may be nil.
func NewGuard(cfg config.AuthConfig, navigator Navigator, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Guard{
		cfg:       cfg,
		navigator: navigator,
		log:       logger.Named("session"),
		after:     time.AfterFunc,
	}
}

// Token resolves the session token: the configured value wins, otherwise
// the token file is read. Whitespace is trimmed; the result is read once
// and never re-checked within a session.
func (g *Guard) Token() config.Secret {
	if g.cfg.Token.IsSet() {
		return g.cfg.Token
	}
	if g.cfg.TokenFile != "" {
		data, err := os.ReadFile(g.cfg.TokenFile)
		if err != nil {
			if !os.IsNotExist(err) {
				g.log.Warn(context.Background(), "failed to read token file", zap.Error(err))
			}
			return ""
		}
		return config.Secret(strings.TrimSpace(string(data)))
	}
	return ""
}

// Check validates the session. On a missing token it schedules a one-shot
// deferred navigation to the login surface (the delay is a UX debounce, not
// a correctness requirement) carrying the requested location and a
// human-readable reason, and returns Unauthenticated.
func (g *Guard) Check(requested string) State {
	if g.Token().IsSet() {
		return Authenticated
	}

	g.log.Warn(context.Background(), "no session token, scheduling sign-out",
		zap.String("requested", requested),
		zap.Duration("delay", g.cfg.RedirectDelay.Duration()))

	target := g.loginTarget(requested, "You need to be logged in to view your databases")
	g.after(g.cfg.RedirectDelay.Duration(), func() {
		g.navigator.NavigateToLogin(target)
	})
	return Unauthenticated
}

// loginTarget builds the login URL with next/message query parameters.
func (g *Guard) loginTarget(requested, reason string) string {
	q := url.Values{}
	q.Set("next", requested)
	q.Set("message", reason)
	sep := "?"
	if strings.Contains(g.cfg.LoginURL, "?") {
		sep = "&"
	}
	return g.cfg.LoginURL + sep + q.Encode()
}
