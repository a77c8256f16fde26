package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	georitm "github.com/caarlos0/georitm-bridge"
	logp "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "georitmctl",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		log.Fatal("command failed", "err", err)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "georitmctl",
		Short:         "Inspect and control GeoRITM security systems",
		Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v, cfgFile); err != nil {
				return err
			}
			level, err := logp.ParseLevel(v.GetString("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			georitm.SetLogLevel(level)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.georitm.yaml)")
	flags.String("login", "", "account login")
	flags.String("email", "", "account email, alias of --login")
	flags.String("password", "", "account password")
	flags.String("base-url", georitm.DefaultBaseURL, "API base URL")
	flags.Duration("timeout", 15*time.Second, "HTTP timeout")
	flags.String("log-level", "warn", "log level")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		newLoginCmd(v),
		newDevicesCmd(v),
		newDeviceCmd(v),
		newCommandCmd(v, "arm", "Arm every named area of a device"),
		newCommandCmd(v, "disarm", "Disarm every named area of a device"),
	)
	return root
}

// initConfig reads the config file, if any, and GEORITM_* variables.
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("georitm")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".georitm")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("could not read config: %w", err)
		}
	}
	return nil
}

// buildClient builds a client from the configuration, without logging in.
func buildClient(v *viper.Viper) (*georitm.Client, georitm.Credentials, error) {
	creds, err := georitm.NewCredentials(
		v.GetString("login"),
		v.GetString("email"),
		v.GetString("password"),
	)
	if err != nil {
		return nil, creds, err
	}
	cli, err := georitm.New(creds, georitm.Options{
		BaseURL: v.GetString("base-url"),
		Timeout: v.GetDuration("timeout"),
	})
	return cli, creds, err
}

// newClient builds a logged in client from the configuration.
func newClient(cmd *cobra.Command, v *viper.Viper) (*georitm.Client, error) {
	cli, _, err := buildClient(v)
	if err != nil {
		return nil, err
	}
	if _, err := cli.Login(cmd.Context()); err != nil {
		return nil, err
	}
	return cli, nil
}
