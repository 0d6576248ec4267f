// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-cdi2iso.
//
// go-cdi2iso is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-cdi2iso is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-cdi2iso.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZaparooProject/go-cdi2iso/internal/logging"
)

// app holds state shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    Config

	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "cdi2iso",
		Short: "Convert CD-i disc images to ISO",
		Long: `cdi2iso extracts the 2048-byte user data of every sector of a CD-i
image and writes it as an ISO file.

Supported sources:
  - Raw images with 2048, 2352, 2368 or 2448-byte sectors
  - CHD images (V3-V5)
  - Images inside ZIP, 7z and RAR archives

Examples:
  cdi2iso convert game.cdi
  cdi2iso convert game.cdi game.iso --overwrite
  cdi2iso convert games.zip/disc.cdi --json
  cdi2iso detect game.chd`,
		Version:           appVersion,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/cdi2iso/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", logging.FormatText, "log format: text or json")

	root.AddCommand(newConvertCmd(a), newDetectCmd(a))
	return root
}

// setup loads the config file and builds the logger. Flags given on the
// command line win over config values.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path, explicit := a.configPath, true
	if path == "" {
		path, explicit = defaultConfigPath(), false
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	a.cfg = cfg

	flags := cmd.Flags()
	overrideString(flags, "log-level", &a.logLevel, cfg.LogLevel)
	overrideString(flags, "log-format", &a.logFormat, cfg.LogFormat)

	logger, err := a.newLogger(a.stderr)
	if err != nil {
		return err
	}
	cmd.SetContext(logging.WithContext(cmd.Context(), logger))
	return nil
}

// newLogger builds a logger on w with the resolved level and format.
func (a *app) newLogger(w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(w, level, a.logFormat)
}

// overrideString replaces *dst with value when value is set and the flag
// was not given explicitly.
func overrideString(flags *pflag.FlagSet, name string, dst *string, value string) {
	if value != "" && !flags.Changed(name) {
		*dst = value
	}
}

func overrideBool(flags *pflag.FlagSet, name string, dst *bool, value *bool) {
	if value != nil && !flags.Changed(name) {
		*dst = *value
	}
}
