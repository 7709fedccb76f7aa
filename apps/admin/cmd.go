package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/evaluation"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptySecret = errors.New("an empty value was entered")
)

type commandLine struct {
	migrations migrationRunner
	usrRepo    user.Repository
	questions  question.Service
	evalRepo   evaluation.Repository
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func newCommandLine(
	migrations migrationRunner,
	usrRepo user.Repository,
	questions question.Service,
	evalRepo evaluation.Repository,
) *commandLine {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	return &commandLine{
		migrations: migrations,
		usrRepo:    usrRepo,
		questions:  questions,
		evalRepo:   evalRepo,
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Portal administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.out)
	cmd.AddCommand(cli.migrateCmd())
	cmd.AddCommand(cli.addUserCmd())
	cmd.AddCommand(cli.resetPasswordCmd())
	cmd.AddCommand(cli.seedCmd())
	return cmd
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// prompt reads a secret from the terminal without echoing it.
func (cli *commandLine) prompt(label string) (string, error) {
	cli.printf("Enter %s:", label)
	secret, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(secret) == 0 {
		return "", errEmptySecret
	}
	return string(secret), nil
}

// checkSecrets applies the password and security code policies.
func (cli *commandLine) checkSecrets(usr user.User, pwd, code string) error {
	err := cli.validate.Struct(user.UpdateProfile{
		Name:            usr.Name,
		Email:           usr.Email,
		NewPassword:     pwd,
		NewSecurityCode: code,
	})
	return cli.describe(err)
}

// describe flattens validation errors into a single readable error.
func (cli *commandLine) describe(err error) error {
	var msgs []string
	switch vErr := err.(type) {
	case nil:
		return nil
	case validator.ValidationErrors:
		for _, fe := range vErr {
			msgs = append(msgs, fe.Translate(cli.translator))
		}
	case *core.ValidationError:
		for _, fe := range vErr.Fields {
			msgs = append(msgs, fe.Field+": "+fe.Error)
		}
		if len(msgs) == 0 {
			return vErr
		}
	default:
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}
