package main

import (
	"context"
	"os"

	"github.com/meowecho-tech/vote/internal/guard"
	"github.com/meowecho-tech/vote/internal/service"
)

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.newFlags("register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("VOTE_PASSWORD"), "password (or VOTE_PASSWORD)")
	name := fs.String("name", "", "full name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(flagValue{"email", *email}, flagValue{"password", *password}); err != nil {
		return err
	}
	if err := a.auth.Register(ctx, service.RegisterInput{Email: *email, Password: *password, FullName: *name}); err != nil {
		return err
	}
	return a.print(map[string]bool{"ok": true})
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("VOTE_PASSWORD"), "password (or VOTE_PASSWORD)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(flagValue{"email", *email}, flagValue{"password", *password}); err != nil {
		return err
	}
	otpRequired, err := a.auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	return a.print(map[string]bool{"otp_required": otpRequired})
}

type identityView struct {
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
	Landing       string `json:"landing"`
}

func viewIdentity(id service.Identity, next string) identityView {
	view := identityView{Authenticated: id.Authenticated, Landing: guard.PostLoginTarget(next)}
	if id.KnownRole {
		view.Role = string(id.Role)
	}
	return view
}

func (a *app) verify(ctx context.Context, args []string) error {
	fs := a.newFlags("verify")
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "one-time code")
	next := fs.String("next", "", "console path to continue to after sign-in")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(flagValue{"email", *email}, flagValue{"code", *code}); err != nil {
		return err
	}
	id, err := a.auth.VerifyOTP(ctx, *email, *code)
	if err != nil {
		return err
	}
	return a.print(viewIdentity(id, *next))
}

func (a *app) logout(ctx context.Context, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	return a.print(map[string]bool{"ok": true})
}

func (a *app) whoami(_ context.Context, _ []string) error {
	return a.print(viewIdentity(a.auth.WhoAmI(), ""))
}
