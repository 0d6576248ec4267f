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
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

// recorder captures the collaborator ports of a conversion.
type recorder struct {
	progress []int
	lines    []string
}

func (r *recorder) options() Options {
	return Options{
		Progress: func(p int) { r.progress = append(r.progress, p) },
		Log:      func(line string) { r.lines = append(r.lines, line) },
	}
}

func TestConvertLayouts(t *testing.T) {
	t.Parallel()

	for _, layout := range []Layout{PlainLayout, RawLayout, PQLayout, CDGLayout} {
		t.Run(layout.Kind.String(), func(t *testing.T) {
			t.Parallel()

			const sectors = 160
			dst := &memDest{}
			result := Convert(context.Background(), bytes.NewReader(buildImage(layout, sectors)), dst, Options{})
			if result != Success {
				t.Fatalf("Convert = %v, want success", result)
			}
			if want := expectedISO(sectors); !bytes.Equal(dst.data, want) {
				t.Errorf("output differs: got %d bytes, want %d", len(dst.data), len(want))
			}
		})
	}
}

func TestConvertFourRawSectors(t *testing.T) {
	t.Parallel()

	var rec recorder
	dst := &memDest{}
	result := Convert(context.Background(), bytes.NewReader(buildImage(RawLayout, 4)), dst, rec.options())

	if result != Success {
		t.Fatalf("Convert = %v, want success", result)
	}
	if len(dst.data) != 0 {
		t.Errorf("output length = %d, want 0", len(dst.data))
	}
	if !slices.Contains(rec.lines, "Detected raw CDI image.") {
		t.Errorf("lines = %q, want raw detection", rec.lines)
	}
}

func TestConvertPlainOutputLength(t *testing.T) {
	t.Parallel()

	dst := &memDest{}
	result := Convert(context.Background(), bytes.NewReader(buildImage(PlainLayout, 200)), dst, Options{})
	if result != Success {
		t.Fatalf("Convert = %v, want success", result)
	}

	want := (200-151)*PayloadSize + FinalSectorBytes
	if len(dst.data) != want {
		t.Errorf("output length = %d, want %d", len(dst.data), want)
	}
	if int64(want) != OutputSize(PlainLayout, 200*2048) {
		t.Errorf("OutputSize disagrees with Convert")
	}
}

func TestConvertSkipsLeadingSectors(t *testing.T) {
	t.Parallel()

	dst := &memDest{}
	Convert(context.Background(), bytes.NewReader(buildImage(RawLayout, 152)), dst, Options{})

	// Sector 150 is first; sector 151 is last and truncated.
	if len(dst.data) != PayloadSize+FinalSectorBytes {
		t.Fatalf("output length = %d", len(dst.data))
	}
	if dst.data[0] != payloadByte(150, 0) || dst.data[PayloadSize] != payloadByte(151, 0) {
		t.Error("output does not start at sector 150")
	}
}

func TestConvertTrailingPartialSector(t *testing.T) {
	t.Parallel()

	data := append(buildImage(RawLayout, 155), make([]byte, 1000)...)
	dst := &memDest{}
	if result := Convert(context.Background(), bytes.NewReader(data), dst, Options{}); result != Success {
		t.Fatalf("Convert = %v, want success", result)
	}
	if !bytes.Equal(dst.data, expectedISO(155)) {
		t.Error("trailing partial sector was not ignored")
	}
}

func TestConvertProgress(t *testing.T) {
	t.Parallel()

	for _, sectors := range []int{1, 3, 160, 1000} {
		var rec recorder
		Convert(context.Background(), bytes.NewReader(buildImage(PlainLayout, sectors)), &memDest{}, rec.options())

		if len(rec.progress) == 0 || rec.progress[len(rec.progress)-1] != ProgressMax {
			t.Fatalf("%d sectors: progress = %v, want final 100", sectors, rec.progress)
		}
		for i := 1; i < len(rec.progress); i++ {
			if rec.progress[i] <= rec.progress[i-1] {
				t.Fatalf("%d sectors: progress not strictly increasing: %v", sectors, rec.progress)
			}
		}
	}
}

func TestConvertLogLines(t *testing.T) {
	t.Parallel()

	var rec recorder
	opts := rec.options()
	opts.SessionID = "abc"
	Convert(context.Background(), bytes.NewReader(buildImage(PlainLayout, 4)), &memDest{}, opts)

	want := []string{
		"Starting conversion abc",
		"Detected normal CDI image.",
		"File format ok, starting conversion...",
		"Conversion 25% done",
		"Conversion 50% done",
		"Conversion 75% done",
		"Conversion completed",
	}
	if !slices.Equal(rec.lines, want) {
		t.Errorf("lines = %q\nwant %q", rec.lines, want)
	}
	if !slices.Equal(rec.progress, []int{25, 50, 75, 100}) {
		t.Errorf("progress = %v", rec.progress)
	}
}

func TestConvertPreCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var rec recorder
	dst := &memDest{data: []byte("stale content")}
	result := Convert(ctx, bytes.NewReader(buildImage(RawLayout, 200)), dst, rec.options())

	if result != Canceled {
		t.Fatalf("Convert = %v, want canceled", result)
	}
	if len(dst.data) != 0 {
		t.Errorf("output length = %d, want 0", len(dst.data))
	}
	if rec.lines[len(rec.lines)-1] != "Conversion cancelled by user." {
		t.Errorf("last line = %q", rec.lines[len(rec.lines)-1])
	}
	if len(rec.progress) != 0 {
		t.Errorf("progress reported on cancel: %v", rec.progress)
	}
}

func TestConvertCanceledMidway(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rec recorder
	opts := rec.options()
	opts.Progress = func(p int) {
		rec.progress = append(rec.progress, p)
		if p == 90 {
			cancel()
		}
	}

	dst := &memDest{}
	result := Convert(ctx, bytes.NewReader(buildImage(PlainLayout, 1000)), dst, opts)
	if result != Canceled {
		t.Fatalf("Convert = %v, want canceled", result)
	}
	if slices.Contains(rec.progress, ProgressMax) {
		t.Error("final progress reported after cancel")
	}
	// Sectors 150..900 were written before the cancel was observed.
	want := expectedISO(1000)[:(901-SkippedSectors)*PayloadSize]
	if !bytes.Equal(dst.data, want) {
		t.Errorf("partial output length = %d, want %d", len(dst.data), len(want))
	}
}

func TestConvertFailures(t *testing.T) {
	t.Parallel()

	image := buildImage(RawLayout, 200)

	tests := []struct {
		src   func() io.ReadSeeker
		dst   Destination
		cause error
		name  string
	}{
		{
			name:  "read failure",
			src:   func() io.ReadSeeker { return &failingSource{Reader: bytes.NewReader(image), limit: 170 * 2352} },
			dst:   &memDest{},
			cause: errInjected,
		},
		{
			name:  "write failure",
			src:   func() io.ReadSeeker { return &failingSource{Reader: bytes.NewReader(image), limit: int64(len(image))} },
			dst:   &failingDest{},
			cause: errInjected,
		},
		{
			name:  "short source",
			src:   func() io.ReadSeeker { return &growingSource{Reader: bytes.NewReader(image), extra: 5 * 2352} },
			dst:   &memDest{},
			cause: ErrShortSource,
		},
		{
			name:  "truncated last sector",
			src:   func() io.ReadSeeker { return &growingSource{Reader: bytes.NewReader(image[:len(image)-100]), extra: 100} },
			dst:   &memDest{},
			cause: ErrShortSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var rec recorder
			var logged bytes.Buffer
			opts := rec.options()
			opts.Logger = slog.New(slog.NewTextHandler(&logged, nil))

			result := Convert(context.Background(), tt.src(), tt.dst, opts)
			if result != IOFailure {
				t.Fatalf("Convert = %v, want io_failure", result)
			}
			if rec.lines[len(rec.lines)-1] != "Exception while accessing files." {
				t.Errorf("last line = %q", rec.lines[len(rec.lines)-1])
			}
			if !strings.Contains(logged.String(), tt.cause.Error()) {
				t.Errorf("logged cause missing %q: %s", tt.cause, logged.String())
			}
		})
	}
}

func TestOutputSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		layout Layout
		size   int64
		want   int64
	}{
		{layout: PlainLayout, size: 0, want: 0},
		{layout: PlainLayout, size: 150 * 2048, want: 0},
		{layout: PlainLayout, size: 151 * 2048, want: 1559},
		{layout: RawLayout, size: 200*2352 + 100, want: 49*2048 + 1559},
		{layout: CDGLayout, size: 4 * 2448, want: 0},
		{layout: Layout{}, size: 1 << 20, want: 0},
	}

	for _, tt := range tests {
		if got := OutputSize(tt.layout, tt.size); got != tt.want {
			t.Errorf("OutputSize(%v, %d) = %d, want %d", tt.layout.Kind, tt.size, got, tt.want)
		}
	}
}

func TestResultText(t *testing.T) {
	t.Parallel()

	names := map[Result]string{Success: "success", Canceled: "canceled", IOFailure: "io_failure"}
	for r, want := range names {
		if got, _ := r.MarshalText(); string(got) != want {
			t.Errorf("MarshalText(%d) = %q, want %q", r, got, want)
		}
	}
}

func TestConvertCancelLogsFlushFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var logged bytes.Buffer
	opts := Options{
		Logger: slog.New(slog.NewTextHandler(&logged, &slog.HandlerOptions{Level: slog.LevelDebug})),
		// Sector 160 is reached with only ten sectors buffered, so the
		// first write to the destination happens after the cancel.
		Progress: func(p int) {
			if p == 16 {
				cancel()
			}
		},
	}

	result := Convert(ctx, bytes.NewReader(buildImage(PlainLayout, 1000)), &failingDest{}, opts)
	if result != Canceled {
		t.Fatalf("Convert = %v, want canceled", result)
	}
	if !strings.Contains(logged.String(), "flush after cancel") ||
		!strings.Contains(logged.String(), errInjected.Error()) {
		t.Errorf("flush failure not logged: %s", logged.String())
	}
}
