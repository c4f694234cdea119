package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tradeclub/internal/client/api"
	"github.com/dmitrijs2005/tradeclub/internal/client/models"
	"github.com/dmitrijs2005/tradeclub/internal/common"
)

// Prompt seams, replaced in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// Login prompts for credentials and signs in through the auth API. Other
// tabs of the same storage follow within one poll interval.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.exec(func() error {
		u, err := a.authService.Login(ctx, email, string(password))
		if u == nil {
			return loginError(err)
		}
		fmt.Fprintf(a.out, "Signed in as %s\n", u.Name)
		return err
	})
}

// Signup prompts for the new account's details and signs in on success.
func (a *App) Signup(ctx context.Context) error {
	var req api.SignupRequest
	var err error

	if req.FullName, err = getSimpleText(a.reader, "Full name", a.out); err != nil {
		return err
	}
	if req.Email, err = getSimpleText(a.reader, "Email", a.out); err != nil {
		return err
	}
	if req.MobileNumber, err = getSimpleText(a.reader, "Mobile number (optional)", a.out); err != nil {
		return err
	}
	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	req.Password = string(password)
	common.WipeByteArray(password)

	return a.exec(func() error {
		u, err := a.authService.Signup(ctx, req)
		if u == nil {
			if errors.Is(err, api.ErrConflict) {
				return errors.New("an account with this email already exists")
			}
			return err
		}
		fmt.Fprintf(a.out, "Welcome, %s!\n", u.Name)
		return err
	})
}

func (a *App) Logout(ctx context.Context) error {
	return a.exec(func() error {
		if err := a.authService.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Signed out")
		return nil
	})
}

func (a *App) WhoAmI(_ context.Context) error {
	u := a.authService.Current()
	if u == nil {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> role=%s id=%s\n", u.Name, u.Email, u.Role, u.ID)
	if u.Avatar != "" {
		fmt.Fprintf(a.out, "avatar: %s\n", u.Avatar)
	}
	return nil
}

// Profile applies "key=value" edits to the active session. Values may
// contain spaces: words without '=' extend the previous value.
func (a *App) Profile(ctx context.Context, args []string) error {
	upd, err := parseProfileArgs(args)
	if err != nil {
		return err
	}
	return a.exec(func() error {
		if _, err := a.authService.UpdateProfile(ctx, upd); err != nil {
			return err
		}
		return a.WhoAmI(ctx)
	})
}

func parseProfileArgs(args []string) (models.ProfileUpdate, error) {
	var upd models.ProfileUpdate
	if len(args) == 0 {
		return upd, errors.New("usage: profile name=<name> email=<email> avatar=<url>")
	}

	values := make(map[string]*string)
	var current *string
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			if current == nil {
				return upd, fmt.Errorf("expected key=value, got %q", arg)
			}
			*current += " " + arg
			continue
		}
		switch key {
		case "name", "email", "avatar":
		default:
			return upd, fmt.Errorf("unknown profile field %q", key)
		}
		v := value
		values[key] = &v
		current = &v
	}

	upd.Name, upd.Email, upd.Avatar = values["name"], values["email"], values["avatar"]
	return upd, nil
}

func loginError(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return errors.New("invalid email or password")
	}
	if errors.Is(err, api.ErrUnavailable) {
		return fmt.Errorf("server unavailable, try again later: %w", err)
	}
	return err
}
