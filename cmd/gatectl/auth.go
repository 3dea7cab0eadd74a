package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

func runLogin(a *app, args []string) error {
	fs := a.flags("login")
	username := fs.StringP("username", "u", "", "user name")
	password := fs.String("password", os.Getenv("PARKGATE_PASSWORD"), "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.init(); err != nil {
		return err
	}

	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	if *password == "" {
		p, err := readPassword(a)
		if err != nil {
			return err
		}
		*password = p
	}

	res := a.store.Login(context.Background(), *username, *password)
	if !res.Success {
		return errors.New(res.Error)
	}
	user := a.store.Auth().User
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func readPassword(a *app) (string, error) {
	fmt.Fprint(a.out, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(a *app, args []string) error {
	if err := a.flags("logout").Parse(args); err != nil {
		return err
	}
	if err := a.init(); err != nil {
		return err
	}
	a.store.Logout()
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(a *app, args []string) error {
	if err := a.flags("whoami").Parse(args); err != nil {
		return err
	}
	if err := a.init(); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	user := a.store.Auth().User
	fmt.Fprintf(a.out, "%s (%s) id=%s\n", user.Username, user.Role, user.ID)
	return nil
}
