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

package archive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// imageExtensions are the disc image formats the converter accepts.
var imageExtensions = map[string]bool{
	".cdi": true, // DiscJuggler / CD-i
	".bin": true,
	".img": true,
	".mdf": true,
	".iso": true,
	".chd": true,
}

// IsImageFile reports whether filename has a disc image extension.
func IsImageFile(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// DetectImageFile returns the name of the first disc image in arc.
// When several are present, .cdi members are preferred.
func DetectImageFile(arc Archive) (string, error) {
	files, err := arc.List()
	if err != nil {
		return "", fmt.Errorf("list archive files: %w", err)
	}

	first := ""
	for _, file := range files {
		if !IsImageFile(file.Name) {
			continue
		}
		if strings.EqualFold(filepath.Ext(file.Name), ".cdi") {
			return file.Name, nil
		}
		if first == "" {
			first = file.Name
		}
	}
	if first == "" {
		return "", NoImageFilesError{Archive: archiveName(arc)}
	}
	return first, nil
}

// archiveName returns the path an archive was opened from, when known.
func archiveName(arc Archive) string {
	if named, ok := arc.(interface{ Path() string }); ok {
		return named.Path()
	}
	return "archive"
}
