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
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-cdi2iso"
	"github.com/ZaparooProject/go-cdi2iso/archive"
	"github.com/ZaparooProject/go-cdi2iso/internal/logging"
)

var errFailed = errors.New("conversion failed")

type convertFlags struct {
	tmpDir      string
	json        bool
	progress    bool
	overwrite   bool
	keepPartial bool
}

func newConvertCmd(a *app) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Convert a disc image to ISO",
		Long: `Convert a disc image to an ISO file.

The output defaults to the input name with an .iso extension, next to the
input (or next to the archive for archive members).

Exit status is 0 on success, 130 when interrupted and 1 on failure.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.tmpDir, "tmp-dir", "", "directory for images extracted from archives")
	flags.BoolVar(&f.json, "json", false, "print a JSON report on stdout")
	flags.BoolVar(&f.progress, "progress", true, "show a progress bar")
	flags.BoolVar(&f.overwrite, "overwrite", false, "replace an existing output file")
	flags.BoolVar(&f.keepPartial, "keep-partial", false, "keep the output file after a failed or interrupted conversion")
	return cmd
}

func (a *app) convert(cmd *cobra.Command, args []string, f *convertFlags) error {
	flags := cmd.Flags()
	overrideString(flags, "tmp-dir", &f.tmpDir, a.cfg.TempDir)
	overrideBool(flags, "progress", &f.progress, a.cfg.Progress)
	overrideBool(flags, "overwrite", &f.overwrite, a.cfg.Overwrite)

	in := args[0]
	out, err := outputPath(in, args[1:])
	if err != nil {
		return err
	}

	var bar *progressBar
	logger := logging.FromContext(cmd.Context())
	if f.progress && !f.json {
		bar = newProgressBar(a.stderr)
		if logger, err = a.newLogger(bar); err != nil {
			bar.finish()
			return err
		}
	}

	sessionID := uuid.NewString()
	sink := logging.LineSink(logger.With("session", sessionID))

	opts := cdi2iso.FileOptions{
		Options: cdi2iso.Options{
			SessionID: sessionID,
			Logger:    logger,
			Log:       sink,
		},
		TempDir:     f.tmpDir,
		Overwrite:   f.overwrite,
		KeepPartial: f.keepPartial,
	}
	if bar != nil {
		opts.Progress = bar.set
		opts.Log = func(line string) {
			if !isProgressLine(line) {
				sink(line)
			}
		}
	}

	start := time.Now()
	report, err := cdi2iso.ConvertFile(cmd.Context(), in, out, opts)
	bar.finish()
	if err != nil {
		return err
	}

	if f.json {
		if err := writeJSON(a.stdout, convertReport{
			FileReport: report,
			Session:    sessionID,
			Input:      in,
			Output:     out,
			Elapsed:    time.Since(start).Round(time.Millisecond).String(),
		}); err != nil {
			return err
		}
	}

	switch report.Result {
	case cdi2iso.Success:
		return nil
	case cdi2iso.Canceled:
		return &exitError{code: exitCanceled}
	default:
		return &exitError{code: exitFailure, err: errFailed}
	}
}

// outputPath returns the explicit output argument, or the input name with
// an .iso extension placed next to the input file or archive.
func outputPath(in string, rest []string) (string, error) {
	var out string
	if len(rest) > 0 {
		out = rest[0]
	} else {
		out = defaultOutput(in)
	}
	if filepath.Clean(out) == filepath.Clean(in) {
		return "", fmt.Errorf("output %s would overwrite the input", out)
	}
	return out, nil
}

func defaultOutput(in string) string {
	dir, name := filepath.Dir(in), filepath.Base(in)
	if p, err := archive.ParsePath(in); err == nil && p != nil {
		dir, name = filepath.Dir(p.ArchivePath), filepath.Base(p.ArchivePath)
		if p.InternalPath != "" {
			name = filepath.Base(filepath.FromSlash(p.InternalPath))
		}
	}
	return filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+".iso")
}
