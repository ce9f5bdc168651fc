package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Manu343726/framevars/cmd/tools"
	"github.com/Manu343726/framevars/cmd/vars"
	"github.com/Manu343726/framevars/pkg/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var closeLog = func() error { return nil }

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "framevars",
	Short: "Recover local variables and arguments of x86/x64 functions",
	Long: `Framevars scans the machine code of the function a debuggee is stopped in,
collects every [register ± displacement] memory access and shows them as named
frame slots (Local1, Arg0, ...) with their live values.

The debuggee is a process snapshot (see 'framevars tools docs snapshot.format')
whose recorded stops can be replayed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("no_color") {
			color.NoColor = true
		}

		_, closer, err := logging.Setup(logging.Options{
			Level: viper.GetString("log.level"),
			File:  viper.GetString("log.file"),
		})
		if err != nil {
			return err
		}
		closeLog = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(tools.ToolsCmd, vars.VarsCmd)
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.framevars.yaml)")
	flags.String("arch", "", "Target architecture (x86, x64). Overrides the snapshot.")
	flags.StringSlice("registers", nil, "Registers frame slots are tracked for (default: frame pointer)")
	flags.Bool("hex-prefix", true, "Prefix displacements with 0x")
	flags.Bool("memory-spaces", false, "Surround the displacement sign with spaces")
	flags.String("labels", "", "Directory of the slot names database (default: in memory)")
	flags.String("log-level", "warn", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write JSON logs to this file")
	flags.Bool("no-color", false, "Disable colored output")

	cobra.CheckErr(viper.BindPFlag("arch", flags.Lookup("arch")))
	cobra.CheckErr(viper.BindPFlag("registers", flags.Lookup("registers")))
	cobra.CheckErr(viper.BindPFlag("disassembler.hex_prefix", flags.Lookup("hex-prefix")))
	cobra.CheckErr(viper.BindPFlag("disassembler.memory_spaces", flags.Lookup("memory-spaces")))
	cobra.CheckErr(viper.BindPFlag("labels.path", flags.Lookup("labels")))
	cobra.CheckErr(viper.BindPFlag("log.level", flags.Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log.file", flags.Lookup("log-file")))
	cobra.CheckErr(viper.BindPFlag("no_color", flags.Lookup("no-color")))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".framevars" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".framevars")
	}

	// FRAMEVARS_LOG_LEVEL, FRAMEVARS_DISASSEMBLER_HEX_PREFIX, ...
	viper.SetEnvPrefix("FRAMEVARS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
