package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/lesson-runner/internal/auth"
)

func newHashPassphraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passphrase [passphrase]",
		Short: "Print the bcrypt hash to use as server.passphrase_hash",
		Long: `Hash a passphrase for the HTTP token endpoint. With no argument the
passphrase is read from the first line of stdin, which keeps it out of shell history.

Examples:
  lessonrun hash-passphrase
  echo -n 's3cret' | lessonrun hash-passphrase`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plaintext string
			if len(args) == 1 {
				plaintext = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no passphrase given")
				}
				plaintext = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.NewPassphrase().Hash(plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
