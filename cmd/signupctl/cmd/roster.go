package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSignupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "signup <activity> <email>",
		Short:   "Sign a student up for an activity",
		Example: `  signupctl signup "Chess Club" newstudent@mergington.edu`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := opts.client().Signup(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printMessage(cmd, opts, msg)
		},
	}
}

func newUnregisterCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "unregister <activity> <email>",
		Aliases: []string{"remove"},
		Short:   "Remove a student from an activity",
		Example: `  signupctl unregister "Chess Club" michael@mergington.edu`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := opts.client().Unregister(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printMessage(cmd, opts, msg)
		},
	}
}

func printMessage(cmd *cobra.Command, opts *options, msg string) error {
	out := cmd.OutOrStdout()
	switch opts.format() {
	case "json", "yaml":
		return encode(out, opts.format(), map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(out, msg)
	return err
}

// encode writes v as indented JSON or YAML.
func encode(out io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	}

	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
