package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nyxmentor/portal/core/question"
)

// errOutstandingEvaluations is returned by seed when reseeding would orphan the questions of
// pending or failed evaluations.
var errOutstandingEvaluations = errors.New("evaluations are outstanding")

func (cli *commandLine) seedCmd() *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the question bank",
		Long: "Replace the question bank with the questions of a YAML file, or with the bank shipped with the binary.\n" +
			"Every question gets a new ID, so pending and failed evaluations would lose their questions: " +
			"seed refuses to run while there are any, unless --force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var qs []question.Question
			var err error
			if file != "" {
				qs, err = question.LoadBank(file)
			} else {
				qs, err = question.DefaultBank()
			}
			if err != nil {
				return err
			}

			if !force {
				n, err := cli.evalRepo.CountOutstanding(cmd.Context())
				if err != nil {
					return err
				}
				if n > 0 {
					return errors.Wrapf(errOutstandingEvaluations, "%d pending or failed, use --force to reseed anyway", n)
				}
			}

			qs, err = cli.questions.Seed(cmd.Context(), qs)
			if err != nil {
				return cli.describe(err)
			}
			cli.printf("seeded %d questions\n", len(qs))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML question bank (defaults to the built-in bank)")
	cmd.Flags().BoolVar(&force, "force", false, "reseed even if evaluations are outstanding")
	return cmd
}
