package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/services"
)

// App holds the shell state. Only the session id, its bearer token and the
// sanitized user view are kept between commands.
type App struct {
	auth    services.AuthService
	reader  *bufio.Reader
	out     io.Writer
	session *models.Session
	token   string
	user    *models.UserView
}

func NewApp(auth services.AuthService, in io.Reader, out io.Writer) *App {
	return &App{auth: auth, reader: bufio.NewReader(in), out: out}
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to credcore (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) status() string {
	if a.user == nil {
		return "anonymous"
	}
	return a.user.Email
}

func (a *App) clearSession() {
	a.session = nil
	a.token = ""
	a.user = nil
}
