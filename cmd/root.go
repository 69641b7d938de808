package cmd

import (
	"fmt"
	"os"

	"zchain/config"
	"zchain/logx"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	logFile    string
	logLevel   string

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "zchain",
	Short: "Proof-of-work block chain miner",
	Long:  "Command line interface for mining and verifying a minimal proof-of-work block chain.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = *loaded
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File = logFile
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		initLogging(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to an ini config file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file with rotation instead of stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level: debug|info|warn|error")
}

func initLogging(lc config.LogConfig) {
	logx.SetLevel(logx.ParseLevel(lc.Level))
	if lc.File == "" {
		return
	}
	logx.InitWithOutput(&lumberjack.Logger{
		Filename: lc.File,
		MaxSize:  lc.MaxSizeMB,
		MaxAge:   lc.MaxAgeDays,
	})
	logx.Info("CMD", fmt.Sprintf("Logging to %s", lc.File))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed: ", err)
		os.Exit(1)
	}
}
