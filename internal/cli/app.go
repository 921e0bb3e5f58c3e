// Package cli implements gophauth-admin, the operator tool for hashing
// passwords and managing the local user store.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/password"
	"github.com/dmitrijs2005/gophauth/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// ErrUsage is returned for unknown commands and bad arguments.
var ErrUsage = errors.New("usage error")

// globalFlags are consumed by config.LoadConfig and skipped when looking for
// the command name. All of them take a value.
var globalFlags = map[string]struct{}{
	"-a": {}, "-g": {}, "-t": {}, "-d": {}, "-s": {}, "-l": {}, "-v": {},
	"-c": {}, "-config": {}, "--config": {},
}

type command struct {
	usage string
	help  string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{}

// commandOrder fixes the order of the help listing.
var commandOrder = []string{
	"hash", "verify", "gen-secret", "init-db",
	"add-user", "delete-user", "list-users",
	"change-password", "set-user-status", "set-groups", "test-auth",
}

func init() {
	commands["hash"] = command{"hash [-password P]", "print the argon2id hash of a password", (*App).hash}
	commands["verify"] = command{"verify -hash H [-password P]", "check a password against a stored hash", (*App).verify}
	commands["gen-secret"] = command{"gen-secret [-bytes N]", "print a random token signing secret", (*App).genSecret}
	commands["init-db"] = command{"init-db", "create or upgrade the database schema", (*App).initDB}
	commands["add-user"] = command{"add-user [-groups a,b] [-password P] USERNAME", "create an enabled user", (*App).addUser}
	commands["delete-user"] = command{"delete-user USERNAME", "delete a user", (*App).deleteUser}
	commands["list-users"] = command{"list-users", "list all users", (*App).listUsers}
	commands["change-password"] = command{"change-password [-password P] USERNAME", "set a new password", (*App).changePassword}
	commands["set-user-status"] = command{"set-user-status USERNAME enabled|disabled", "enable or disable a user", (*App).setUserStatus}
	commands["set-groups"] = command{"set-groups USERNAME a,b", "replace the groups of a user", (*App).setGroups}
	commands["test-auth"] = command{"test-auth [-password P] USERNAME", "authenticate without issuing a token", (*App).testAuth}
}

type App struct {
	config *config.Config
	in     *bufio.Reader
	out    io.Writer
	hasher services.PasswordHasher
}

func NewApp(cfg *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		config: cfg,
		in:     bufio.NewReader(in),
		out:    out,
		hasher: password.NewDefaultHasher(),
	}
}

// Run executes the command found in args (usually os.Args[1:]).
func (a *App) Run(ctx context.Context, args []string) error {
	name, rest := SplitCommand(args)
	if name == "" || name == "help" {
		a.printHelp()
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		a.printHelp()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	return cmd.run(a, ctx, rest)
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out, "Usage: gophauth-admin [-t driver] [-d dsn] [-c config.json] COMMAND [ARGS]")
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(a.out, "  %-45s %s\n", c.usage, c.help)
	}
}

// SplitCommand returns the first argument that is neither a global flag nor
// a global flag's value, and the arguments that follow it.
func SplitCommand(args []string) (string, []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			name, _, hasValue := strings.Cut(arg, "=")
			if _, ok := globalFlags[name]; ok && !hasValue {
				i++
			}
			continue
		}
		return arg, args[i+1:]
	}
	return "", nil
}

// parseInterspersed parses flags appearing before, between or after the
// positional arguments and returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func expectArgs(name string, got []string, n int) error {
	if len(got) != n {
		return fmt.Errorf("%w: %s: expected %d argument(s), got %d", ErrUsage, name, n, len(got))
	}
	return nil
}

// splitGroups parses a comma separated group list.
func splitGroups(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// openUsers opens the configured database and returns a UserService and a
// close function.
func (a *App) openUsers(ctx context.Context, migrate bool) (*services.UserService, func(), error) {
	db, rm, err := repomanager.Open(ctx, a.config.DatabaseDriver, a.config.DatabaseDSN, migrate)
	if err != nil {
		return nil, nil, err
	}
	return services.NewUserService(db, rm, a.hasher, nil), func() { _ = db.Close() }, nil
}

// passwordArg returns the -password value or reads it from the user.
func (a *App) passwordArg(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return ReadSecret(a.in, a.out)
}
