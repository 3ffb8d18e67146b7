// Copyright 2024 The EtherDFS Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/megapearl/etherdfs/cfg"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	serverConfig  cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "ethersrv [flags] interface path [path...]",
	Short: "Serve host directories as DOS drives over raw Ethernet",
	Long: `ethersrv exposes one or more host directories as virtual DOS drives
(C: through Z:) to MS-DOS clients speaking the EtherDFS protocol over raw
Ethernet frames. Each path given on the command line is assigned to the
next drive letter, starting at C.`,
	Version: "0.9.0",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		return serve(serverConfig, args[0], args[1:])
	},
}

func Execute() {
	// Usage errors, socket failures, a held lock file and unresolvable
	// paths all exit 1.
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config-file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("error while reading config file: %w", err)
			return
		}
	}
	unmarshalErr = viper.Unmarshal(&serverConfig, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
}
