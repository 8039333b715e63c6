// Copyright 2025 The TapTun Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command taptun bridges an Ethernet-framed TAP interface to IP-only transports through the tap2tun
// translator, and replays captured frames through the translator offline.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "taptun",
	Short: "L2<->L3 translation tool for TAP interfaces",
	Long: `taptun connects an Ethernet-framed (L2) TAP interface to environments that only move
raw IP (L3) packets. It strips and rebuilds Ethernet headers, answers ARP requests for
the interface address locally, and learns the gateway MAC from observed ARP traffic.

Configuration is read from flags, a config file (--config) and TAPTUN_* environment
variables, in that order of precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path with rotation; empty logs to stderr")
	must(viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")))
	must(viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file")))
}

func setup(cmd *cobra.Command, _ []string) error {
	viper.SetEnvPrefix("TAPTUN")
	viper.AutomaticEnv()
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %q: %w", cfgFile, err)
		}
	}

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	if file := viper.GetString("log.file"); file != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	return nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
