package session

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *fakeNavigator) NavigateToLogin(loginURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, loginURL)
}

func (n *fakeNavigator) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

func TestCheckAuthenticated(t *testing.T) {
	nav := &fakeNavigator{}
	g := NewGuard(config.AuthConfig{Token: "tok"}, nav, nil)

	assert.Equal(t, Authenticated, g.Check("/manage-database"))
	assert.Empty(t, nav.calls())
}

func TestCheckMissingTokenEventuallyNavigates(t *testing.T) {
	nav := &fakeNavigator{}
	g := NewGuard(config.AuthConfig{
		LoginURL:      "/log-in",
		RedirectDelay: config.Duration(time.Millisecond),
	}, nav, nil)

	state := g.Check("/manage-database")
	assert.Equal(t, Unauthenticated, state)

	require.Eventually(t, func() bool { return len(nav.calls()) == 1 },
		time.Second, time.Millisecond)

	target := nav.calls()[0]
	require.True(t, strings.HasPrefix(target, "/log-in?"))

	parsed, err := url.Parse(target)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "/manage-database", q.Get("next"))
	assert.Contains(t, q.Get("message"), "logged in")
}

func TestCheckNavigatesExactlyOnce(t *testing.T) {
	nav := &fakeNavigator{}
	g := NewGuard(config.AuthConfig{
		LoginURL:      "/log-in",
		RedirectDelay: config.Duration(time.Millisecond),
	}, nav, nil)

	g.Check("/manage-database")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, nav.calls(), 1)
}

func TestTokenFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("  file-token \n"), 0o600))

	g := NewGuard(config.AuthConfig{TokenFile: path}, &fakeNavigator{}, nil)
	assert.Equal(t, "file-token", g.Token().Value())

	// Configured token wins over the file.
	g = NewGuard(config.AuthConfig{Token: "direct", TokenFile: path}, &fakeNavigator{}, nil)
	assert.Equal(t, "direct", g.Token().Value())
}

func TestTokenMissingFile(t *testing.T) {
	g := NewGuard(config.AuthConfig{
		TokenFile: filepath.Join(t.TempDir(), "absent"),
	}, &fakeNavigator{}, nil)
	assert.False(t, g.Token().IsSet())
}
