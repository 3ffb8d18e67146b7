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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Foreground bool `yaml:"foreground"`

	Debug bool `yaml:"debug"`

	LockFile string `yaml:"lock-file"`

	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	FilePath string `yaml:"file-path"`

	Format string `yaml:"format"`

	Severity string `yaml:"severity"`

	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.BoolP("foreground", "f", false, "Stay in the foreground after starting instead of daemonizing.")

	err = viper.BindPFlag("foreground", flagSet.Lookup("foreground"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug", "v", false, "Enable protocol trace logging.")

	err = viper.BindPFlag("debug", flagSet.Lookup("debug"))
	if err != nil {
		return err
	}

	flagSet.StringP("lock-file", "", "/var/run/ethersrv.lock", "Path of the single-instance lock file.")

	err = viper.BindPFlag("lock-file", flagSet.Lookup("lock-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "The file for storing logs. The default is to log to standard error.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "The format of the logs: 'text' or 'json'.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Specifies the logging severity: TRACE, DEBUG, INFO, WARNING, ERROR or OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-file-size-mb", "", 512, "The maximum size in megabytes that a log file can have before it is rotated.")

	err = viper.BindPFlag("logging.max-file-size-mb", flagSet.Lookup("log-rotate-max-file-size-mb"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "The maximum number of backup log files to retain after they have been rotated. A value of 0 retains all backup files.")

	err = viper.BindPFlag("logging.backup-file-count", flagSet.Lookup("log-rotate-backup-file-count"))
	if err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Controls whether the rotated log files should be compressed using gzip.")

	err = viper.BindPFlag("logging.compress", flagSet.Lookup("log-rotate-compress"))
	if err != nil {
		return err
	}

	return nil
}
