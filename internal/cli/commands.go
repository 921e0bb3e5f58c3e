package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/tokens"
)

func (a *App) hash(_ context.Context, args []string) error {
	fs := newFlagSet("hash")
	pw := fs.String("password", "", "password to hash (prompted when empty)")
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs("hash", rest, 0); err != nil {
		return err
	}

	p, err := a.passwordArg(*pw)
	if err != nil {
		return err
	}
	encoded, err := a.hasher.Hash(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, encoded)
	return nil
}

func (a *App) verify(_ context.Context, args []string) error {
	fs := newFlagSet("verify")
	encoded := fs.String("hash", "", "stored PHC hash")
	pw := fs.String("password", "", "password to check (prompted when empty)")
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs("verify", rest, 0); err != nil {
		return err
	}
	if *encoded == "" {
		return fmt.Errorf("%w: verify: -hash is required", ErrUsage)
	}

	p, err := a.passwordArg(*pw)
	if err != nil {
		return err
	}
	if err := a.hasher.Verify(p, *encoded); err != nil {
		fmt.Fprintln(a.out, "mismatch")
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *App) genSecret(_ context.Context, args []string) error {
	fs := newFlagSet("gen-secret")
	n := fs.Int("bytes", 32, "number of random bytes")
	if _, err := parseInterspersed(fs, args); err != nil {
		return err
	}
	if *n*2 < tokens.MinSecretLength {
		return fmt.Errorf("%w: gen-secret: -bytes must be at least %d", ErrUsage, (tokens.MinSecretLength+1)/2)
	}

	s, err := common.MakeRandHexString(*n)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, s)
	return nil
}

func (a *App) initDB(ctx context.Context, args []string) error {
	if err := expectArgs("init-db", args, 0); err != nil {
		return err
	}
	_, closeFn, err := a.openUsers(ctx, true)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintf(a.out, "database %s initialised\n", a.config.DatabaseDriver)
	return nil
}

func (a *App) addUser(ctx context.Context, args []string) error {
	fs := newFlagSet("add-user")
	groups := fs.String("groups", "", "comma separated groups")
	pw := fs.String("password", "", "password (prompted when empty)")
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs("add-user", rest, 1); err != nil {
		return err
	}

	p, err := a.passwordArg(*pw)
	if err != nil {
		return err
	}

	us, closeFn, err := a.openUsers(ctx, a.config.AutoMigrate)
	if err != nil {
		return err
	}
	defer closeFn()

	u, err := us.AddUser(ctx, rest[0], p, splitGroups(*groups))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %s added (groups: %s)\n", u.Username, strings.Join(u.Groups, ","))
	return nil
}

func (a *App) deleteUser(ctx context.Context, args []string) error {
	if err := expectArgs("delete-user", args, 1); err != nil {
		return err
	}
	us, closeFn, err := a.openUsers(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := us.DeleteUser(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %s deleted\n", args[0])
	return nil
}

func (a *App) listUsers(ctx context.Context, args []string) error {
	if err := expectArgs("list-users", args, 0); err != nil {
		return err
	}
	us, closeFn, err := a.openUsers(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := us.ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tSTATUS\tGROUPS\tUPDATED")
	for _, u := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.Status(), strings.Join(u.Groups, ","), u.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (a *App) changePassword(ctx context.Context, args []string) error {
	fs := newFlagSet("change-password")
	pw := fs.String("password", "", "new password (prompted when empty)")
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs("change-password", rest, 1); err != nil {
		return err
	}

	p, err := a.passwordArg(*pw)
	if err != nil {
		return err
	}

	us, closeFn, err := a.openUsers(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := us.ChangePassword(ctx, rest[0], p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "password of %s changed\n", rest[0])
	return nil
}

func (a *App) setUserStatus(ctx context.Context, args []string) error {
	if err := expectArgs("set-user-status", args, 2); err != nil {
		return err
	}

	var enabled bool
	switch args[1] {
	case "enabled", "enable":
		enabled = true
	case "disabled", "disable":
		enabled = false
	default:
		return fmt.Errorf("%w: set-user-status: status must be enabled or disabled", ErrUsage)
	}

	us, closeFn, err := a.openUsers(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := us.SetUserStatus(ctx, args[0], enabled); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %s %s\n", args[0], args[1])
	return nil
}

func (a *App) setGroups(ctx context.Context, args []string) error {
	if len(args) == 1 {
		args = append(args, "")
	}
	if err := expectArgs("set-groups", args, 2); err != nil {
		return err
	}

	us, closeFn, err := a.openUsers(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := us.SetGroups(ctx, args[0], splitGroups(args[1])); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "groups of %s set\n", args[0])
	return nil
}

func (a *App) testAuth(ctx context.Context, args []string) error {
	fs := newFlagSet("test-auth")
	pw := fs.String("password", "", "password (prompted when empty)")
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs("test-auth", rest, 1); err != nil {
		return err
	}

	p, err := a.passwordArg(*pw)
	if err != nil {
		return err
	}

	us, closeFn, err := a.openUsers(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	claims, err := us.TestAuth(ctx, rest[0], p)
	if err != nil {
		fmt.Fprintf(a.out, "authentication failed: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "authenticated %s via %s\ngroups: %s\nexpires: %s\n",
		claims.Subject(), claims.Provider(), strings.Join(claims.Groups(), ","), claims.ExpiresAt().UTC().Format(time.RFC3339))
	return nil
}
