package cmd

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjenner/nodegate/internal/pkg/logging"
)

var _rootCmdOpts struct {
	cfgFile string
	debug   bool
}

var rootCmd = &cobra.Command{
	Use:   "nodegate",
	Short: "Node control gateway over the Home Assistant REST API",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _rootCmdOpts.debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the selected subcommand
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.cfgFile, "config", "", "config file (default is $HOME/.nodegate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&_rootCmdOpts.debug, "debug", false, "enable debug logging")

	// Environment contract of the add-on: the supervisor provides the
	// API proxy location and bearer token
	errPanic(viper.GetViper().BindEnv("ha.base-url", "HA_PROXY"))
	errPanic(viper.GetViper().BindEnv("ha.token", "SUPERVISOR_TOKEN"))
	errPanic(viper.GetViper().BindEnv("http.port", "PORT"))
}

func initConfig() {
	if _rootCmdOpts.cfgFile != "" {
		viper.SetConfigFile(_rootCmdOpts.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".nodegate")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Logger(nil).Debugf("using config file %s", viper.ConfigFileUsed())
	}
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}
