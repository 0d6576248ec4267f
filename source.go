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

package cdi2iso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/go-cdi2iso/archive"
	"github.com/ZaparooProject/go-cdi2iso/chd"
)

// Origin describes where the bytes of a Source come from.
type Origin string

// Source origins.
const (
	OriginFile    Origin = "file"
	OriginArchive Origin = "archive"
	OriginCHD     Origin = "chd"
	OriginDevice  Origin = "device"
)

// Source is an opened, seekable disc image.
type Source struct {
	io.ReadSeeker
	Origin Origin
	Path   string // Path the caller asked for
	Member string // Archive member, if any
	Size   int64

	closers []io.Closer
}

// Close releases every resource held by the source, most recent first.
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenSource opens path for conversion. Paths into archives (for example
// "games.zip/disc.cdi") are extracted to a temporary file under tmpDir;
// CHD images are decompressed on the fly. Anything else is opened directly.
func OpenSource(ctx context.Context, path, tmpDir string) (*Source, error) {
	if archive.IsArchivePath(path) {
		arcPath, err := archive.ParsePath(path)
		if err != nil {
			return nil, fmt.Errorf("parse source path: %w", err)
		}
		if arcPath != nil {
			return openFromArchive(ctx, path, arcPath, tmpDir)
		}
	}

	if isCHD(path) {
		img, err := chd.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open CHD image: %w", err)
		}
		src := &Source{Path: path}
		src.useCHD(img)
		return src, nil
	}

	file, err := os.Open(path) //nolint:gosec // Path from user input is expected
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	src := &Source{Path: path, closers: []io.Closer{file}}

	size, err := sourceSize(file, path)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	adviseSequential(file)

	src.ReadSeeker = file
	src.Origin = OriginFile
	src.Size = size
	if isBlockDevice(path) {
		src.Origin = OriginDevice
	}
	return src, nil
}

// sourceSize returns the size of file. Block devices report a zero size
// from Stat, so they are measured by seeking to the end.
func sourceSize(file *os.File, path string) (int64, error) {
	if !isBlockDevice(path) {
		info, err := file.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat source: %w", err)
		}
		return info.Size(), nil
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("measure device: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind device: %w", err)
	}
	return size, nil
}

func openFromArchive(ctx context.Context, path string, arcPath *archive.Path, tmpDir string) (*Source, error) {
	arc, err := archive.Open(arcPath.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = arc.Close() }()

	member := arcPath.InternalPath
	if member == "" {
		member, err = archive.DetectImageFile(arc)
		if err != nil {
			return nil, fmt.Errorf("detect disc image: %w", err)
		}
	}

	spooled, err := archive.Spool(ctx, arc, member, tmpDir)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", member, err)
	}
	src := &Source{Path: path, Member: member, closers: []io.Closer{spooled}}

	if isCHD(member) {
		img, err := chd.NewImage(spooled.File())
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("open CHD image: %w", err)
		}
		src.useCHD(img)
		return src, nil
	}

	src.ReadSeeker = spooled.File()
	src.Origin = OriginArchive
	src.Size = spooled.Size()
	return src, nil
}

// useCHD exposes the decompressed frames of img. The source takes
// ownership of img.
func (s *Source) useCHD(img *chd.Image) {
	s.closers = append(s.closers, img)
	s.ReadSeeker = img.Frames()
	s.Origin = OriginCHD
	s.Size = img.Size()
}

func isCHD(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".chd")
}

// FileOptions configures ConvertFile.
type FileOptions struct {
	Options

	// TempDir holds images extracted from archives. Empty means os.TempDir().
	TempDir string

	// Overwrite allows replacing an existing destination file.
	Overwrite bool

	// KeepPartial leaves the destination in place after a failed or canceled conversion.
	KeepPartial bool
}

// Destination errors of ConvertFile.
var (
	// ErrDestinationExists is returned when the output file exists and overwriting is disabled.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrSameFile is returned when the output names the input file, directly or through a link.
	ErrSameFile = errors.New("destination is the source file")
)

// FileReport describes a ConvertFile run.
type FileReport struct {
	Result Result `json:"result"`
	Origin Origin `json:"origin,omitempty"`
	Member string `json:"member,omitempty"`
	Layout Layout `json:"layout"`
	Bytes  int64  `json:"bytes"`
}

// ConvertFile converts the image at inPath into an ISO file at outPath.
// The returned error is non-nil only when the files could not be opened;
// conversion outcomes are reported through FileReport.Result.
func ConvertFile(ctx context.Context, inPath, outPath string, opts FileOptions) (FileReport, error) {
	src, err := OpenSource(ctx, inPath, opts.TempDir)
	if errors.Is(err, context.Canceled) {
		opts.log(logCanceled)
		return FileReport{Result: Canceled}, nil
	}
	if err != nil {
		return FileReport{Result: IOFailure}, err
	}
	defer func() { _ = src.Close() }()
	report := FileReport{Result: IOFailure, Origin: src.Origin, Member: src.Member}

	flags := os.O_RDWR | os.O_CREATE
	if !opts.Overwrite {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(outPath, flags, 0o644) //nolint:gosec // Output path from user input is expected
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return report, fmt.Errorf("%w: %s", ErrDestinationExists, outPath)
		}
		return report, fmt.Errorf("open destination: %w", err)
	}

	if err := checkDistinct(src, dst); err != nil {
		_ = dst.Close()
		return report, err
	}

	s := convert(ctx, src, dst, &opts.Options)
	report.Result, report.Layout, report.Bytes = s.result, s.layout, s.bytesWritten

	closeErr := dst.Close()
	if report.Result == Success && closeErr != nil {
		opts.logger().Error("close destination", "error", closeErr)
		report.Result = IOFailure
	}
	if report.Result != Success && !opts.KeepPartial {
		if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			opts.logger().Warn("remove partial destination", "path", outPath, "error", err)
		}
	}

	return report, nil
}

// checkDistinct fails when dst is the file src reads from. Archive and CHD
// sources read a spool file or a decoder, so only direct files are checked.
func checkDistinct(src *Source, dst *os.File) error {
	if src.Origin != OriginFile && src.Origin != OriginDevice {
		return nil
	}
	srcInfo, err := os.Stat(src.Path)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	dstInfo, err := dst.Stat()
	if err != nil {
		return fmt.Errorf("stat destination: %w", err)
	}
	if os.SameFile(srcInfo, dstInfo) {
		return fmt.Errorf("%w: %s", ErrSameFile, dst.Name())
	}
	return nil
}
