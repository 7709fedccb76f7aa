package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one with the same email",
		Long: "Create a user, or update the one with the same email.\n" +
			"The role is derived from the email domain unless --role is given. Password and security code are prompted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.prompt("password")
			if err != nil {
				return err
			}
			code, err := cli.prompt("security code")
			if err != nil {
				return err
			}
			usr, created, err := cli.addUser(cmd.Context(), name, email, role, pwd, code)
			if err != nil {
				return err
			}
			if created {
				cli.printf("created %s <%s> (%s)\n", usr.Name, usr.Email, usr.Role)
			} else {
				cli.printf("updated %s <%s> (%s)\n", usr.Name, usr.Email, usr.Role)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().StringVar(&name, "name", "", "the user's full name")
	cmd.Flags().StringVar(&role, "role", "", "the user's role, must match the email domain")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, role, pwd, code string) (user.User, bool, error) {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role)

	if err := cli.validate.Var(email, "required,email"); err != nil {
		return user.User{}, false, fmt.Errorf("invalid email %q", email)
	}
	if role == "" {
		var ok bool
		if role, ok = core.RoleFromEmail(email); !ok {
			return user.User{}, false, fmt.Errorf("no role uses the domain of %q", email)
		}
	} else if !core.EmailMatchesRole(email, role) {
		return user.User{}, false, fmt.Errorf("%q is not an email of the %s role", email, role)
	}
	email = user.InstitutionalEmail(email)

	created := false
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return user.User{}, false, err
		}
		created = true
		usr = user.User{Email: email, CreatedAt: time.Now().UTC()}
	}
	usr.Name = name
	usr.Role = role

	if err = cli.checkSecrets(usr, pwd, code); err != nil {
		return user.User{}, false, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, false, err
	}
	if err = usr.SetSecurityCode(code); err != nil {
		return user.User{}, false, err
	}
	usr.UpdatedAt = time.Now().UTC()

	if created {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return usr, created, err
}
