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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Fixed CD-i layout constants. Their values are kept exactly as established.
const (
	// SkippedSectors is the number of leading sectors that are read but never written.
	SkippedSectors = 150

	// FinalSectorBytes is the number of payload bytes written for the last sector.
	FinalSectorBytes = 1559

	// ProgressMax is the value of a complete progress report.
	ProgressMax = 100
)

// Literal log lines. Collaborators may display them verbatim.
const (
	logNormalImage       = "Detected normal CDI image."
	logRawImage          = "Detected raw CDI image."
	logPQImage           = "Detected PQ CDI image."
	logCDGImage          = "Detected CD+G CDI image."
	logStartingStreaming = "File format ok, starting conversion..."
	logCompleted         = "Conversion completed"
	logCanceled          = "Conversion cancelled by user."
	logIOFailure         = "Exception while accessing files."
)

func logStarting(sessionID string) string {
	if sessionID == "" {
		return "Starting conversion"
	}
	return "Starting conversion " + sessionID
}

func logProgress(percent int) string {
	return fmt.Sprintf("Conversion %d%% done", percent)
}

// ErrShortSource indicates the source ended before a sector was complete.
var ErrShortSource = errors.New("source shorter than expected")

// Result is the outcome of a conversion.
type Result int

// Conversion outcomes.
const (
	Success Result = iota
	Canceled
	IOFailure
)

// MarshalText encodes the result by name.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Canceled:
		return "canceled"
	case IOFailure:
		return "io_failure"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Destination is a writable, seekable, truncatable byte stream such as *os.File.
type Destination interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
}

// Options carries the optional collaborator ports of a conversion.
// Every field may be left zero.
type Options struct {
	// Progress receives whole percentages, strictly increasing, ending at 100 on success.
	Progress func(percent int)

	// Log receives human-readable status lines.
	Log func(line string)

	// SessionID is included in the first log line.
	SessionID string

	// Logger receives structured diagnostics, including failure causes.
	Logger *slog.Logger
}

func (o *Options) progress(percent int) {
	if o.Progress != nil {
		o.Progress(percent)
	}
}

func (o *Options) log(line string) {
	if o.Log != nil {
		o.Log(line)
	}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// session holds the state of one running conversion.
type session struct {
	ctx          context.Context //nolint:containedctx // Scoped to a single Convert call
	src          io.ReadSeeker
	dst          Destination
	opts         *Options
	layout       Layout
	sectorCount  uint64
	bytesWritten int64
	lastProgress int
	result       Result
}

// Convert classifies src and writes the user data of its sectors to dst.
// The streams are borrowed for the duration of the call and are not closed.
// Every failure is mapped to the returned Result; the cause goes to opts.Logger.
func Convert(ctx context.Context, src io.ReadSeeker, dst Destination, opts Options) Result {
	return convert(ctx, src, dst, &opts).result
}

func convert(ctx context.Context, src io.ReadSeeker, dst Destination, opts *Options) *session {
	logger := opts.logger().With("session", opts.SessionID)
	opts.log(logStarting(opts.SessionID))

	s := &session{ctx: ctx, src: src, dst: dst, opts: opts}
	err := s.run()

	switch {
	case err == nil:
		opts.progress(ProgressMax)
		opts.log(logCompleted)
		logger.Debug("conversion completed",
			"kind", s.layout.Kind.String(),
			"sectors", s.sectorCount,
			"bytes", s.bytesWritten)
		s.result = Success
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		opts.log(logCanceled)
		logger.Info("conversion canceled", "bytes", s.bytesWritten)
		s.result = Canceled
	default:
		opts.log(logIOFailure)
		logger.Error("conversion failed", "error", err, "bytes", s.bytesWritten)
		s.result = IOFailure
	}
	return s
}

func (s *session) run() error {
	layout, err := Classify(s.src)
	if err != nil {
		return fmt.Errorf("classify source: %w", err)
	}
	s.layout = layout
	s.opts.log(layout.Kind.detectedLine())
	s.opts.log(logStartingStreaming)

	if err := s.dst.Truncate(0); err != nil {
		return fmt.Errorf("truncate destination: %w", err)
	}
	if _, err := s.dst.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek destination: %w", err)
	}
	if err := s.ctx.Err(); err != nil {
		return err //nolint:wrapcheck // Context errors are matched by the caller
	}

	size, err := s.src.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("measure source: %w", err)
	}
	s.sectorCount = uint64(size) / uint64(layout.SectorSize) //nolint:gosec // Seek never returns a negative size
	if _, err := s.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind source: %w", err)
	}

	return s.stream()
}

// stream copies the payload of every sector. Cancellation is observed before
// each read and each write.
func (s *session) stream() error {
	sectorSize := int(s.layout.SectorSize)
	reader := bufio.NewReaderSize(s.src, sectorSize*16)
	writer := bufio.NewWriterSize(s.dst, PayloadSize*16)
	payload := make([]byte, PayloadSize)

	for i := uint64(0); i < s.sectorCount; i++ {
		if err := s.ctx.Err(); err != nil {
			s.flushCanceled(writer)
			return err //nolint:wrapcheck // Context errors are matched by the caller
		}
		if err := s.readSector(reader, payload, i); err != nil {
			return err
		}

		if i >= SkippedSectors {
			if err := s.ctx.Err(); err != nil {
				s.flushCanceled(writer)
				return err //nolint:wrapcheck // Context errors are matched by the caller
			}
			n := PayloadSize
			if i == s.sectorCount-1 {
				n = FinalSectorBytes
			}
			if _, err := writer.Write(payload[:n]); err != nil {
				return fmt.Errorf("write sector %d: %w", i, err)
			}
			s.bytesWritten += int64(n)
		}

		s.reportProgress(i)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush destination: %w", err)
	}
	return nil
}

// flushCanceled writes out what was buffered before a cancellation. A
// failure here does not change the result.
func (s *session) flushCanceled(writer *bufio.Writer) {
	if err := writer.Flush(); err != nil {
		s.opts.logger().Debug("flush after cancel", "session", s.opts.SessionID, "error", err)
	}
}

// readSector skips the header, fills payload and skips the ECC bytes of sector i.
func (s *session) readSector(reader *bufio.Reader, payload []byte, i uint64) error {
	if err := discard(reader, int(s.layout.HeaderLen)); err != nil {
		return fmt.Errorf("skip header of sector %d: %w", i, err)
	}
	if _, err := io.ReadFull(reader, payload); err != nil {
		return fmt.Errorf("read sector %d: %w", i, shortRead(err))
	}
	if err := discard(reader, int(s.layout.EccLen)); err != nil {
		return fmt.Errorf("skip ecc of sector %d: %w", i, err)
	}
	return nil
}

func (s *session) reportProgress(i uint64) {
	current := int(i * ProgressMax / s.sectorCount) //nolint:gosec // Bounded by ProgressMax
	if current <= s.lastProgress {
		return
	}
	s.lastProgress = current
	s.opts.progress(current)
	s.opts.log(logProgress(current))
}

func discard(reader *bufio.Reader, n int) error {
	if n == 0 {
		return nil
	}
	if _, err := reader.Discard(n); err != nil {
		return shortRead(err)
	}
	return nil
}

// shortRead maps end-of-stream conditions to ErrShortSource.
func shortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortSource
	}
	return err
}

// OutputSize returns the number of bytes Convert writes for a source of
// sourceSize bytes with the given layout.
func OutputSize(layout Layout, sourceSize int64) int64 {
	if layout.SectorSize == 0 || sourceSize <= 0 {
		return 0
	}
	sectors := sourceSize / int64(layout.SectorSize)
	if sectors <= SkippedSectors {
		return 0
	}
	return (sectors-SkippedSectors-1)*PayloadSize + FinalSectorBytes
}
