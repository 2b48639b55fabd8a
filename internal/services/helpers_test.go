package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/config"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/dbtest"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/keymgr"
	"github.com/dmitrijs2005/credcore/internal/mailer"
	"github.com/dmitrijs2005/credcore/internal/metrics"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/session"
	"github.com/dmitrijs2005/credcore/internal/store"
	"github.com/dmitrijs2005/credcore/internal/twofactor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testKDF = cryptox.KDFParams{Time: 1, MemoryKB: 1024, Threads: 1, KeyLen: 32}

type testEnv struct {
	svc    AuthService
	store  *store.Store
	crypto *cryptox.Service
	clock  *clock.Fake
	outbox *mailer.Outbox
	reg    *prometheus.Registry
	cfg    *config.Config
	deps   Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st := store.New(dbtest.OpenSQLite(t), dbx.SQLite)
	key, err := keymgr.New(st.Repos().Metadata).GetOrCreateKey(ctx)
	require.NoError(t, err)

	crypto, err := cryptox.NewService(key, testKDF)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 10, 0, time.UTC))
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LoadDefaults()

	outbox := &mailer.Outbox{}
	deps := Deps{
		Store:     st,
		Crypto:    crypto,
		Clock:     clk,
		Sessions:  session.NewManager(clk, st.Repos().Sessions, cfg.SessionTTL),
		Tokens:    session.NewTokenIssuer([]byte("test-signing-key"), clk),
		TwoFactor: twofactor.New(crypto, clk, st.Repos().TwoFactor, cfg.TOTPIssuer),
		Audit:     audit.New(clk, st.Repos().AuditLog),
		Mailer:    outbox,
		Metrics:   m,
	}

	return &testEnv{
		svc:    NewAuthService(deps, cfg),
		store:  st,
		crypto: crypto,
		clock:  clk,
		outbox: outbox,
		reg:    reg,
		cfg:    cfg,
		deps:   deps,
	}
}

// lastToken pulls the verification token out of the most recent mail.
func (e *testEnv) lastToken(t *testing.T) string {
	t.Helper()
	msgs := e.outbox.Messages()
	require.NotEmpty(t, msgs)
	for _, f := range strings.Fields(msgs[len(msgs)-1].Body) {
		if len(f) == 64 {
			return f
		}
	}
	t.Fatal("no token in verification mail")
	return ""
}

func (e *testEnv) register(t *testing.T, email, password string) *RegistrationResult {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	return res
}

// registerVerified registers an account and redeems its token.
func (e *testEnv) registerVerified(t *testing.T, email, password string) *RegistrationResult {
	t.Helper()
	res := e.register(t, email, password)
	require.NoError(t, e.svc.VerifyEmail(context.Background(), e.lastToken(t)))
	return res
}

func (e *testEnv) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.store.Repos().Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) actions(t *testing.T, userID string) []string {
	t.Helper()
	entries, err := e.svc.AuditLog(context.Background(), audit.Filter{UserID: userID})
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Action)
	}
	return out
}
