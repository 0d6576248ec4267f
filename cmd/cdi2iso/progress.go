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
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"github.com/ZaparooProject/go-cdi2iso"
)

// clearLine returns the cursor to column 0 and erases the bar.
const clearLine = "\r\x1b[K"

// progressBar renders conversion progress on w. It is also an io.Writer for
// log output, so records printed while the bar is drawn land above it.
type progressBar struct {
	bar *pb.ProgressBar
	out *lockedWriter
}

// lockedWriter serializes the bar's refresh goroutine and log writes.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(b []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(b) //nolint:wrapcheck // Pass-through writer
}

func newProgressBar(w io.Writer) *progressBar {
	out := &lockedWriter{w: w}
	bar := pb.New(cdi2iso.ProgressMax).
		SetTemplate(pb.Simple).
		SetWriter(out).
		Start()
	return &progressBar{bar: bar, out: out}
}

func (p *progressBar) set(percent int) {
	p.bar.SetCurrent(int64(percent))
}

// Write prints b over the current bar line and redraws the bar below it.
func (p *progressBar) Write(b []byte) (int, error) {
	if p.bar.IsFinished() {
		return p.out.Write(b)
	}

	prefix := "\n"
	if p.bar.GetBool(pb.Terminal) {
		prefix = clearLine
	}
	p.out.mu.Lock()
	_, err := io.WriteString(p.out.w, prefix)
	if err == nil {
		_, err = p.out.w.Write(b)
	}
	p.out.mu.Unlock()
	if err != nil {
		return 0, err //nolint:wrapcheck // Pass-through writer
	}

	p.bar.Write()
	return len(b), nil
}

func (p *progressBar) finish() {
	if p == nil {
		return
	}
	p.bar.Finish()
}

// isProgressLine reports whether line is a "Conversion n% done" status line.
func isProgressLine(line string) bool {
	return strings.HasPrefix(line, "Conversion ") && strings.HasSuffix(line, "% done")
}
