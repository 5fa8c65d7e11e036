package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mymindmap/shell/internal/shell/app"
	"github.com/mymindmap/shell/internal/shell/router"
	"github.com/mymindmap/shell/internal/shell/session"
	"github.com/mymindmap/shell/pkg/cryptox"
	"github.com/mymindmap/shell/pkg/identity"
)

const usage = `usage: mindmap <command> [flags]

commands:
  login     -email E [-password P]       sign in (password read from stdin when omitted)
  register  -name N -email E [-password P] [-phone P]
  logout                                 end the session
  whoami                                 show the current session
  open      <path>                       navigate, e.g. "open /edit/42"
  can       <resource> <action>          ask whether the user may act on a resource
  watch                                  keep the session open and expire it on time
  keygen                                 print key material for SHELL_TOKEN_KEY
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func run(cmd string, args []string, stdin io.Reader, stdout io.Writer) error {
	if cmd == "keygen" {
		key, err := cryptox.GenerateKey(cryptox.KeySize)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, key)
		return nil
	}

	cfg := app.LoadConfig()
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if cmd == "watch" {
		return application.Run(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout*3)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		_ = application.Shutdown()
		return err
	}
	defer func() { _ = application.Shutdown() }()

	application.Router().OnChange(func(m router.Match) {
		fmt.Fprintf(stdout, "-> %s (%s)\n", m.Path, m.Route.Name)
	})

	ctrl := application.Session()
	switch cmd {
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *password == "" {
			*password = readLine(stdin)
		}
		return report(ctrl, ctrl.Login(ctx, identity.Credentials{Email: *email, Password: *password}), stdout)

	case "register":
		fs := flag.NewFlagSet("register", flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		phone := fs.String("phone", "", "optional phone number")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *password == "" {
			*password = readLine(stdin)
		}
		req := identity.RegisterRequest{Name: *name, Email: *email, Password: *password, Phone: *phone}
		return report(ctrl, ctrl.Register(ctx, req), stdout)

	case "logout":
		return ctrl.Logout(ctx)

	case "whoami":
		printState(ctrl.State(), stdout)
		return nil

	case "open":
		if len(args) != 1 {
			return errors.New("open takes exactly one path")
		}
		return application.Router().Navigate(ctx, args[0])

	case "can":
		if len(args) != 2 {
			return errors.New("can takes a resource and an action")
		}
		if ctrl.CheckPermission(ctx, args[0], args[1]) {
			fmt.Fprintln(stdout, "allowed")
		} else {
			fmt.Fprintln(stdout, "denied")
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

// report prints the outcome of a sign-in, with field messages on failure.
func report(ctrl *session.Controller, err error, stdout io.Writer) error {
	if err == nil {
		printState(ctrl.State(), stdout)
		return nil
	}
	if info := ctrl.LastError(); info != nil {
		return errors.New(info.Summary())
	}
	return err
}

func printState(st session.State, w io.Writer) {
	if !st.Authenticated || st.User == nil {
		fmt.Fprintln(w, "not signed in")
		return
	}
	fmt.Fprintf(w, "%s <%s>\n", st.User.Name, st.User.Email)
	fmt.Fprintf(w, "  role:    %s\n", st.User.RoleName())
	fmt.Fprintf(w, "  status:  %s\n", st.User.StatusName())
	fmt.Fprintf(w, "  expires: %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
}

func readLine(r io.Reader) string {
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimSpace(line)
}
