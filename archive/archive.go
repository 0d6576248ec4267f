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

// Package archive reads disc images stored inside ZIP, 7z and RAR archives.
// Members are streamed, never buffered whole in memory, because disc images
// routinely exceed hundreds of megabytes.
package archive

import (
	"io"
	"path/filepath"
	"strings"
)

// FileInfo describes a regular file stored in an archive.
type FileInfo struct {
	Name string // Slash-separated path within the archive
	Size int64  // Uncompressed size
}

// Archive provides read access to the members of an archive.
type Archive interface {
	// List returns every regular file in the archive, in archive order.
	List() ([]FileInfo, error)

	// Open opens a member for sequential reading and reports its uncompressed size.
	// Names are matched case-insensitively.
	Open(name string) (io.ReadCloser, int64, error)

	// Close releases the archive.
	Close() error
}

// Open opens the archive at path, choosing the format from its extension.
func Open(path string) (Archive, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return OpenZIP(path)
	case ".7z":
		return OpenSevenZip(path)
	case ".rar":
		return OpenRAR(path)
	default:
		return nil, FormatError{Format: filepath.Ext(path)}
	}
}

// IsArchiveExtension reports whether ext names a supported archive format.
func IsArchiveExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".zip", ".7z", ".rar":
		return true
	default:
		return false
	}
}

// sameMember reports whether an archive entry name refers to the requested member.
func sameMember(entry, requested string) bool {
	return strings.EqualFold(filepath.ToSlash(entry), filepath.ToSlash(requested))
}
