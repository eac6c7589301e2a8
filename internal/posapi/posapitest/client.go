package posapitest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pos_console/internal/config"
	"pos_console/internal/posapi"
	"pos_console/internal/session"
	"pos_console/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Config points a console configuration at the fake backend.
func (b *Backend) Config() config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = b.URL()
	cfg.Timeout = 5 * time.Second
	return cfg
}

// Connect builds a client whose session is persisted in a temporary store. The
// session is not logged in.
func (b *Backend) Connect(t testing.TB) (*posapi.Client, *session.Session) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zaptest.NewLogger(t)
	cfg := b.Config()
	sess := session.New(context.Background(), store, posapi.NewAuthClient(cfg, logger), logger)
	return posapi.NewClient(cfg, sess, logger), sess
}

// LoggedIn is Connect followed by a successful login.
func (b *Backend) LoggedIn(t testing.TB) (*posapi.Client, *session.Session) {
	t.Helper()
	client, sess := b.Connect(t)
	require.NoError(t, sess.Login(context.Background(), Username, Password))
	return client, sess
}
