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

	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-cdi2iso"
)

type detectFlags struct {
	tmpDir string
	json   bool
}

func newDetectCmd(a *app) *cobra.Command {
	f := &detectFlags{}
	cmd := &cobra.Command{
		Use:   "detect <input>",
		Short: "Print the sector layout of a disc image",
		Long: `Print the sector layout and volume label of a disc image, and the size of
the ISO that convert would produce.

Example:
  cdi2iso detect game.cdi
  cdi2iso detect games.7z/disc.cdi --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.detect(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.tmpDir, "tmp-dir", "", "directory for images extracted from archives")
	cmd.Flags().BoolVar(&f.json, "json", false, "print a JSON report on stdout")
	return cmd
}

func (a *app) detect(cmd *cobra.Command, in string, f *detectFlags) error {
	overrideString(cmd.Flags(), "tmp-dir", &f.tmpDir, a.cfg.TempDir)

	src, err := cdi2iso.OpenSource(cmd.Context(), in, f.tmpDir)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	layout, err := cdi2iso.Detect(src)
	if err != nil {
		return fmt.Errorf("detect layout: %w", err)
	}

	vol, err := cdi2iso.ReadVolume(src, layout)
	if err != nil && !errors.Is(err, cdi2iso.ErrNoVolume) {
		return fmt.Errorf("read volume descriptor: %w", err)
	}

	report := detectReport{
		Input:    in,
		Origin:   src.Origin,
		Member:   src.Member,
		Layout:   layout,
		Size:     src.Size,
		Sectors:  src.Size / int64(layout.SectorSize),
		ISOBytes: cdi2iso.OutputSize(layout, src.Size),
		Volume:   vol,
	}
	if f.json {
		return writeJSON(a.stdout, report)
	}

	_, _ = fmt.Fprintf(a.stdout, "Layout: %s (sector %d, header %d, ecc %d)\n",
		layout.Kind, layout.SectorSize, layout.HeaderLen, layout.EccLen)
	_, _ = fmt.Fprintf(a.stdout, "Origin: %s\n", src.Origin)
	if src.Member != "" {
		_, _ = fmt.Fprintf(a.stdout, "Member: %s\n", src.Member)
	}
	if vol != nil {
		_, _ = fmt.Fprintf(a.stdout, "Volume: %s (%s, system %q)\n", vol.ID, vol.Standard, vol.System)
	}
	_, _ = fmt.Fprintf(a.stdout, "Sectors: %d\n", report.Sectors)
	_, _ = fmt.Fprintf(a.stdout, "ISO size: %d bytes\n", report.ISOBytes)
	return nil
}
