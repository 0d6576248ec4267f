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
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/ZaparooProject/go-cdi2iso"
)

// convertReport is the --json output of the convert command.
type convertReport struct {
	cdi2iso.FileReport

	Session string `json:"session"`
	Input   string `json:"input"`
	Output  string `json:"output"`
	Elapsed string `json:"elapsed"`
}

// detectReport is the --json output of the detect command.
type detectReport struct {
	Input    string          `json:"input"`
	Origin   cdi2iso.Origin  `json:"origin"`
	Member   string          `json:"member,omitempty"`
	Layout   cdi2iso.Layout  `json:"layout"`
	Size     int64           `json:"size"`
	Sectors  int64           `json:"sectors"`
	ISOBytes int64           `json:"iso_bytes"`
	Volume   *cdi2iso.Volume `json:"volume,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
