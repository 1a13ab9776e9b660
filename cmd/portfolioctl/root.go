package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration keys. Each can be set by flag, by PORTFOLIOCTL_<KEY> in
// the environment, or in ~/.portfolioctl.yaml.
const (
	keyServer     = "server"
	keyOutput     = "output"
	keyUser       = "user"
	keyEmail      = "email"
	keyGroup      = "group"
	keyToken      = "token"
	keyConfigFile = "config"
)

// cli holds the resolved configuration shared by all subcommands.
type cli struct {
	v      *viper.Viper
	format outputFormat
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "portfolioctl",
		Short: "CLI for the portfolio server",
		Long: `portfolioctl manages portfolio items, reviews and their supporting
records on a portfolio server.

Identity is forwarded as trusted-proxy headers (--user, --email, --group)
or as a bearer token (--token). Settings may also come from
PORTFOLIOCTL_* environment variables or ~/.portfolioctl.yaml.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyConfigFile, "", "Config file (default: ~/.portfolioctl.yaml)")
	flags.String(keyServer, "http://localhost:8080", "Portfolio server URL")
	flags.StringP(keyOutput, "o", "table", "Output format: table, json, yaml")
	flags.String(keyUser, "", "Caller identity sent as X-Remote-User")
	flags.String(keyEmail, "", "Caller email sent as X-Remote-Email")
	flags.String(keyGroup, "", "Caller groups sent as X-Remote-Group")
	flags.String(keyToken, "", "Bearer token; replaces the identity headers")

	root.AddCommand(
		newItemsCmd(c),
		newReviewsCmd(c),
		newStreamsCmd(c),
		newAuditCmd(c),
		newCleanupJobsCmd(c),
		newHealthCmd(c),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.v.SetEnvPrefix("PORTFOLIOCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if file := c.v.GetString(keyConfigFile); file != "" {
		c.v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		c.v.SetConfigFile(filepath.Join(home, ".portfolioctl.yaml"))
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	format, err := parseFormat(c.v.GetString(keyOutput))
	if err != nil {
		return err
	}
	c.format = format
	return nil
}

func (c *cli) output() outputFormat {
	return c.format
}

func (c *cli) client() *portfolioClient {
	return &portfolioClient{
		baseURL: strings.TrimRight(c.v.GetString(keyServer), "/"),
		user:    c.v.GetString(keyUser),
		email:   c.v.GetString(keyEmail),
		group:   c.v.GetString(keyGroup),
		token:   c.v.GetString(keyToken),
		http:    defaultHTTPClient(),
	}
}
