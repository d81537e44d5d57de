// Command transmux reads one media segment — a single file, or a directory
// of sequentially-named chunk files to exercise progressive delivery —
// transmuxes it to fMP4, and writes the init segment followed by every
// fragment to an output file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/pipeline"
	"github.com/zsiec/transmux/transmux"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var (
		inPath  = flag.String("in", "", "path to the input segment file, or a directory of sequentially-named chunk files")
		outPath = flag.String("out", "", "path to write the transmuxed fMP4 output")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: transmux -in <segment-file-or-chunk-dir> -out <fmp4>")
		os.Exit(2)
	}

	if err := run(*inPath, *outPath); err != nil {
		slog.Error("transmux failed", "error", err)
		os.Exit(1)
	}
}

func run(inPath, outPath string) error {
	chunks, progressive, err := readChunks(inPath)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	emitter := logEmitter{log: slog.Default()}
	tm := pipeline.New(transmux.Options{Progressive: progressive}, emitter, nil, nil)

	if err := tm.Configure(transmux.TransmuxConfig{}); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	ctx := context.Background()
	state := &transmux.TransmuxState{Contiguous: true}
	for i, data := range chunks {
		meta := &transmux.ChunkMetadata{Sequence: 0, Part: i}
		res, fut, err := tm.Push(ctx, data, nil, meta, state)
		state = nil // only the first chunk of a segment carries continuity state
		if err != nil {
			return fmt.Errorf("push chunk %d: %w", i, err)
		}
		if fut != nil {
			res, err = fut.Wait()
			if err != nil {
				return fmt.Errorf("push chunk %d (async): %w", i, err)
			}
		}
		if res != nil {
			if err := writeRemux(out, res.Remux); err != nil {
				return err
			}
		}
	}

	flushed, flushedFut, err := tm.Flush(ctx, &transmux.ChunkMetadata{Sequence: 0})
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if flushedFut != nil {
		flushed, err = flushedFut.Wait()
		if err != nil {
			return fmt.Errorf("flush (async): %w", err)
		}
	}
	for _, r := range flushed {
		if r == nil {
			continue
		}
		if err := writeRemux(out, r.Remux); err != nil {
			return err
		}
	}

	tm.Destroy()
	return nil
}

// readChunks reads inPath as a single complete segment, or — when it names a
// directory — as an ordered sequence of progressive chunks, one per regular
// file, in the filename order os.ReadDir already sorts by (the convention a
// sequentially-named chunk set relies on, e.g. chunk-000.ts, chunk-001.ts).
func readChunks(inPath string) ([][]byte, bool, error) {
	info, err := os.Stat(inPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(inPath)
		if err != nil {
			return nil, false, fmt.Errorf("reading input: %w", err)
		}
		return [][]byte{data}, false, nil
	}

	entries, err := os.ReadDir(inPath)
	if err != nil {
		return nil, false, fmt.Errorf("reading chunk directory: %w", err)
	}
	var chunks [][]byte
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(inPath, entry.Name()))
		if err != nil {
			return nil, false, fmt.Errorf("reading chunk %s: %w", entry.Name(), err)
		}
		chunks = append(chunks, data)
	}
	if len(chunks) == 0 {
		return nil, false, fmt.Errorf("no chunk files found in %s", inPath)
	}
	return chunks, true, nil
}

// writeRemux appends one RemuxResult's non-empty buffers to out, in the
// order a player expects to see them within the segment: init segment once,
// then video/audio/id3/text fragments.
func writeRemux(out *os.File, r media.RemuxResult) error {
	for _, buf := range [][]byte{r.InitSegment, r.VideoData, r.AudioData, r.ID3Data, r.TextData} {
		if len(buf) == 0 {
			continue
		}
		if _, err := out.Write(buf); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(name string, payload any) {
	e.log.Warn("transmux event", "event", name, "payload", payload)
}
