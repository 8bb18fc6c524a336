// Package admincli implements the ecomarket administration tool: creating
// the administrator account and listing the known roles.
package admincli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/auth"
	"github.com/dmitrijs2005/ecomarket/internal/server/config"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ecomarket/internal/server/services"
	"golang.org/x/term"
)

// Seams for tests.
var (
	readPassword = term.ReadPassword
	openDB       = repomanager.Open
	newManager   = repomanager.NewPostgresRepositoryManager
)

var (
	ErrUsage            = errors.New("usage: admin <create|roles> [flags]")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrEmptyPassword    = errors.New("password must not be empty")
)

// Run dispatches args[0] to a subcommand and writes its output to w.
func Run(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "create":
		return create(ctx, args[1:], w)
	case "roles":
		return listRoles(ctx, args[1:], w)
	default:
		return ErrUsage
	}
}

func create(ctx context.Context, args []string, w io.Writer) error {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(w)
	dsn := fs.String("d", defaults.DatabaseDSN, "database DSN")
	username := fs.String("u", defaults.AdminUsername, "administrator username")
	email := fs.String("e", defaults.AdminEmail, "administrator email")
	cost := fs.Int("cost", defaults.BcryptCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := promptPassword(w)
	if err != nil {
		return err
	}

	db, m, err := connect(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	// Seeding never issues tokens, so the token service stays keyless.
	svc := services.NewAuthService(db, m, auth.NewBcryptHasher(*cost), auth.NewTokenService(nil, 0), logging.Nop())

	created, err := svc.Seed(ctx, services.AdminAccount{Username: *username, Email: *email, Password: password})
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(w, "administrator %q created\n", *username)
	} else {
		fmt.Fprintf(w, "account %q already exists, roles ensured\n", *username)
	}
	return nil
}

func listRoles(ctx context.Context, args []string, w io.Writer) error {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	fs := flag.NewFlagSet("roles", flag.ContinueOnError)
	fs.SetOutput(w)
	dsn := fs.String("d", defaults.DatabaseDSN, "database DSN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, m, err := connect(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	roles, err := m.Roles(db).List(ctx)
	if err != nil {
		return err
	}
	for _, r := range roles {
		fmt.Fprintf(w, "%d\t%s\n", r.ID, r.Name)
	}
	return nil
}

func connect(ctx context.Context, dsn string) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	m := newManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return db, m, nil
}

// promptPassword reads the password twice without echo.
func promptPassword(w io.Writer) (string, error) {
	first, err := readHidden(w, "Enter password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	second, err := readHidden(w, "Repeat password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if len(first) == 0 {
		return "", ErrEmptyPassword
	}
	if string(first) != string(second) {
		return "", ErrPasswordMismatch
	}
	return string(first), nil
}

func readHidden(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
