// Package cmd implements the signupctl command tree.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/mergington/internal/client"
)

const defaultServer = "http://localhost:8080"

// options holds resolved global settings for a single invocation.
type options struct {
	v       *viper.Viper
	cfgFile string
}

func (o *options) server() string {
	return strings.TrimRight(o.v.GetString("server"), "/")
}

func (o *options) format() string {
	return o.v.GetString("output")
}

func (o *options) client() *client.Client {
	return client.New(o.server(), client.WithHTTPClient(&http.Client{Timeout: o.v.GetDuration("timeout")}))
}

// Execute runs the root command against os.Args.
func Execute() error {
	root := newRootCmd(os.Stdout, os.Stderr)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{v: viper.New()}

	root := &cobra.Command{
		Use:           "signupctl",
		Short:         "Manage Mergington High School activity signups",
		Long:          `signupctl lists extracurricular activities and signs students up or removes them through the signup API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.signupctl/config.yaml)")
	flags.String("server", defaultServer, "signup API base URL")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")
	flags.Duration("timeout", 10*time.Second, "request timeout")

	_ = opts.v.BindPFlag("server", flags.Lookup("server"))
	_ = opts.v.BindPFlag("output", flags.Lookup("output"))
	_ = opts.v.BindPFlag("timeout", flags.Lookup("timeout"))

	root.AddCommand(newListCmd(opts), newSignupCmd(opts), newUnregisterCmd(opts))
	return root
}

// load resolves settings from flags, SIGNUPCTL_* env vars and the config file.
func (o *options) load() error {
	o.v.SetEnvPrefix("SIGNUPCTL")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			o.v.AddConfigPath(filepath.Join(home, ".signupctl"))
		}
		o.v.SetConfigName("config")
		o.v.SetConfigType("yaml")
	}

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	switch o.format() {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q (want table, json or yaml)", o.format())
	}
	return nil
}
