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

// Package chd reads MAME CHD (Compressed Hunks of Data) images as a flat
// stream of CD frames.
//
// Versions 3, 4 and 5 are supported with the zlib, zstd, LZMA and FLAC
// codecs, including their CD variants. Images that depend on a parent
// CHD cannot be read.
package chd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// hunkCacheSize is the number of decompressed hunks kept in memory.
const hunkCacheSize = 16

// Image is an opened CHD image.
type Image struct {
	r      io.ReaderAt
	file   *os.File // set when the image owns its file
	header *Header
	hunks  []hunkEntry
	codecs [4]decompressor

	mu    sync.Mutex
	cache *lru.Cache[uint32, []byte]
	comp  []byte
}

// Open opens the CHD image at path.
func Open(path string) (*Image, error) {
	file, err := os.Open(path) //nolint:gosec // Path from user input is expected
	if err != nil {
		return nil, fmt.Errorf("open CHD file: %w", err)
	}

	img, err := NewImage(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	img.file = file
	return img, nil
}

// NewImage reads the header and hunk map of the CHD image in r.
// The caller keeps ownership of r.
func NewImage(r io.ReaderAt) (*Image, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cache, err := lru.New[uint32, []byte](hunkCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create hunk cache: %w", err)
	}
	img := &Image{r: r, header: header, cache: cache}

	if err := img.readMap(); err != nil {
		return nil, err
	}
	if err := img.initCodecs(); err != nil {
		img.closeCodecs()
		return nil, err
	}
	return img, nil
}

func (img *Image) initCodecs() error {
	for i, tag := range img.header.codecTags() {
		if tag == CodecNone {
			continue
		}
		d, err := newDecompressor(tag)
		if err != nil {
			return err
		}
		img.codecs[i] = d
	}
	return nil
}

func (img *Image) closeCodecs() {
	for _, d := range img.codecs {
		if d != nil {
			closeDecompressor(d)
		}
	}
}

// Header returns the parsed image header.
func (img *Image) Header() *Header {
	return img.header
}

// Size returns the number of logical bytes in the image.
func (img *Image) Size() int64 {
	return int64(img.header.LogicalBytes) //nolint:gosec // Image sizes fit in int64
}

// Frames returns a reader over the logical bytes of the image. For CD
// images these are consecutive 2448-byte frames.
func (img *Image) Frames() *FrameReader {
	return &FrameReader{img: img}
}

// Close releases decoders and, for images from Open, the file.
func (img *Image) Close() error {
	img.closeCodecs()
	img.cache.Purge()
	if img.file != nil {
		if err := img.file.Close(); err != nil {
			return fmt.Errorf("close CHD file: %w", err)
		}
	}
	return nil
}

// hunk returns the decompressed contents of hunk index. The returned slice
// is shared and must not be modified.
func (img *Image) hunk(index uint32) ([]byte, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.loadHunk(index, 0)
}

// loadHunk must be called with mu held. depth bounds chains of self references.
func (img *Image) loadHunk(index uint32, depth int) ([]byte, error) {
	if int(index) >= len(img.hunks) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidHunk, index, len(img.hunks))
	}
	if data, ok := img.cache.Get(index); ok {
		return data, nil
	}

	e := img.hunks[index]
	data := make([]byte, img.header.HunkBytes)

	switch e.kind {
	case hunkCodec0, hunkCodec1, hunkCodec2, hunkCodec3:
		if err := img.decompressHunk(e, data); err != nil {
			return nil, fmt.Errorf("hunk %d: %w", index, err)
		}
	case hunkRaw:
		if _, err := img.r.ReadAt(data, int64(e.offset)); err != nil { //nolint:gosec // Offset from map
			return nil, fmt.Errorf("read hunk %d: %w", index, err)
		}
	case hunkSelf:
		if e.offset >= uint64(index) || depth > len(img.hunks) {
			return nil, fmt.Errorf("%w: hunk %d refers to hunk %d", ErrInvalidHunk, index, e.offset)
		}
		src, err := img.loadHunk(uint32(e.offset), depth+1)
		if err != nil {
			return nil, err
		}
		copy(data, src)
	case hunkMini:
		for i := 0; i+8 <= len(data); i += 8 {
			binary.BigEndian.PutUint64(data[i:], e.offset)
		}
	case hunkZero:
	case hunkParent:
		return nil, fmt.Errorf("%w: hunk %d", ErrParentRequired, index)
	default:
		return nil, fmt.Errorf("%w: hunk %d has kind %d", ErrInvalidHunk, index, e.kind)
	}

	img.cache.Add(index, data)
	return data, nil
}

func (img *Image) decompressHunk(e hunkEntry, dst []byte) error {
	codec := img.codecs[e.kind]
	if codec == nil {
		return fmt.Errorf("%w: no codec in slot %d", ErrUnsupportedCodec, e.kind)
	}
	if e.length > MaxHunkBytes {
		return fmt.Errorf("%w: compressed length %d", ErrInvalidHunk, e.length)
	}

	img.comp = resize(img.comp, int(e.length))
	n, err := img.r.ReadAt(img.comp, int64(e.offset)) //nolint:gosec // Offset from map
	if err != nil && !(errors.Is(err, io.EOF) && n == len(img.comp)) {
		return fmt.Errorf("read compressed data: %w", err)
	}
	return codec.decompress(dst, img.comp)
}
