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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path is a source path split into an archive and an optional member.
type Path struct {
	ArchivePath  string // Archive file on disk
	InternalPath string // Member inside the archive; empty means detect
}

// archiveExtensions are the supported archive extensions.
var archiveExtensions = []string{".zip", ".7z", ".rar"}

// ParsePath splits paths such as "/roms/disc.zip/track/disc.cdi" into the
// archive and the member. A path naming an archive itself yields an empty
// InternalPath. It returns nil, nil when path does not refer to an archive.
//
//nolint:nilnil // nil,nil is documented API behavior
func ParsePath(path string) (*Path, error) {
	lower := strings.ToLower(filepath.ToSlash(path))

	for _, ext := range archiveExtensions {
		idx := strings.Index(lower, ext+"/")
		if idx == -1 {
			continue
		}
		archivePath := path[:idx+len(ext)]
		exists, err := fileExists(archivePath)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		return &Path{
			ArchivePath:  archivePath,
			InternalPath: filepath.ToSlash(path[idx+len(ext)+1:]),
		}, nil
	}

	if !IsArchiveExtension(filepath.Ext(path)) {
		return nil, nil
	}
	exists, err := fileExists(path)
	if err != nil || !exists {
		return nil, err
	}
	return &Path{ArchivePath: path}, nil
}

// IsArchivePath reports whether path looks like an archive reference,
// without touching the filesystem.
func IsArchivePath(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	for _, ext := range archiveExtensions {
		if strings.Contains(lower, ext+"/") {
			return true
		}
	}
	return IsArchiveExtension(filepath.Ext(path))
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat archive %s: %w", path, err)
	}
	return !info.IsDir(), nil
}
