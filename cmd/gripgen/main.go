// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

// gripgen generates the trigram index queried by grip. It reads the list
// of files to index from stdin, from a list file, or from the existing
// index in update mode:
//
//	find . -type f -size -128k | gripgen
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"gopkg.in/urfave/cli.v1"

	"github.com/tex/grip/glob"
	"github.com/tex/grip/index"
)

const version = "0.2.0"

func main() {
	cli.VersionFlag = cli.BoolFlag{Name: "version, V", Usage: "print the version"}

	app := cli.NewApp()
	app.Name = "gripgen"
	app.Usage = "generate the trigram index for grip"
	app.ArgsUsage = "[LIST]"
	app.Version = version
	app.Description = "LIST is a file containing paths to index, one per line.\n" +
		"With no LIST, standard input is read instead."
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "update, u", Usage: "reindex the files of the existing index"},
		cli.IntFlag{Name: "chunk-size", Value: index.DefaultChunkSize / (1024 * 1024), Usage: "chunk size in MB"},
		cli.IntFlag{Name: "verbose, v", Value: 1, Usage: "verbosity level"},
		cli.BoolFlag{Name: "quiet, q", Usage: "print nothing but fatal errors"},
		cli.BoolFlag{Name: "no-messages, s", Usage: "suppress per-file error messages"},
		cli.StringSliceFlag{Name: "include", Usage: "only index files matching `GLOB`"},
		cli.StringSliceFlag{Name: "exclude", Usage: "skip files matching `GLOB`"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	return 1
}

func newLogger(ctx *cli.Context) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case ctx.Bool("quiet"):
		level = zerolog.ErrorLevel
	case ctx.Int("verbose") >= 2:
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func run(ctx *cli.Context) error {
	logger := newLogger(ctx)
	suppressErrors := ctx.Bool("no-messages") || ctx.Bool("quiet")
	chunkSize := ctx.Int("chunk-size") * 1024 * 1024

	store, err := index.OpenStore(index.IndexDirName, true)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("cannot open the index directory: %v", err), 1)
	}

	source, err := openSource(ctx, logger)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer source.Close()

	filter := glob.New()
	for _, pattern := range ctx.StringSlice("include") {
		filter.AddInclude(pattern)
	}
	for _, pattern := range ctx.StringSlice("exclude") {
		filter.AddExclude(pattern)
	}

	logger.Debug().Int("chunk_size_mb", ctx.Int("chunk-size")).Msg("starting")

	ix := index.NewIndexer(store)
	queue := index.NewQueue(1024)

	var stop atomic.Bool
	var producerErr atomic.Value

	var wg conc.WaitGroup
	wg.Go(func() {
		defer queue.Done()
		if err := produce(source, filter, queue, &stop); err != nil {
			producerErr.Store(err)
		}
	})

	started := time.Now()
	lastReport := started
	var seen uint64

	for {
		path, ok := queue.Get()
		if !ok {
			break
		}
		seen++

		if err := ix.IndexFile(path); err != nil {
			if !suppressErrors {
				logger.Warn().Str("path", path).Msg(err.Error())
			}
			continue
		}

		if now := time.Now(); now.Sub(lastReport) >= time.Second {
			elapsed := now.Sub(started).Seconds()
			logger.Info().
				Uint64("files", seen).
				Str("speed", fmt.Sprintf("%.0f files/sec", float64(ix.NumFiles())/elapsed)).
				Str("file", path).
				Msg("indexing")
			lastReport = now
		}

		if ix.Size() >= chunkSize {
			logger.Info().Int("chunk", ix.NumChunks()).Msg("writing chunk to database")
			if err := ix.Write(); err != nil {
				stop.Store(true)
				drain(queue)
				wg.Wait()
				return cli.NewExitError(fmt.Sprintf("cannot write chunk: %v", err), 1)
			}
		}
	}
	wg.Wait()

	logger.Info().Msg("sorting chunks database")
	if err := ix.SortDatabase(); err != nil {
		return cli.NewExitError(fmt.Sprintf("cannot write the index: %v", err), 1)
	}

	duration := time.Since(started)
	logger.Info().
		Int("indexed", ix.NumFiles()).
		Uint64("skipped", seen-uint64(ix.NumFiles())).
		Str("size", humanSize(ix.TotalSize())).
		Str("speed", fmt.Sprintf("%.1f files/sec", float64(ix.NumFiles())/duration.Seconds())).
		Str("database", humanSize(ix.DatabaseSize())).
		Str("time", duration.Round(time.Millisecond).String()).
		Msg("done")

	if err, ok := producerErr.Load().(error); ok {
		return cli.NewExitError(fmt.Sprintf("cannot read the file list: %v", err), 2)
	}
	return nil
}

// produce feeds the queue with filtered, cleaned paths. It checks the stop
// flag between reads so a failing consumer ends the run early.
func produce(source *pathSource, filter *glob.Glob, queue *index.Queue, stop *atomic.Bool) error {
	for !stop.Load() {
		path, err := source.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		path = filepath.Clean(path)
		if insideIndexDir(path) {
			continue
		}
		ok, err := filter.Compare(path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		queue.Put(path)
	}
	return nil
}

// insideIndexDir filters out the index's own files.
func insideIndexDir(path string) bool {
	sep := string(filepath.Separator)
	return path == index.IndexDirName ||
		strings.HasPrefix(path, index.IndexDirName+sep) ||
		strings.Contains(path, sep+index.IndexDirName+sep)
}

// drain empties the queue so a blocked producer can observe the stop flag.
func drain(queue *index.Queue) {
	for {
		if _, ok := queue.Get(); !ok {
			return
		}
	}
}

// pathSource yields the paths to index, one per call.
type pathSource struct {
	file    *os.File
	scanner *bufio.Scanner
	paths   []string
	pos     int
}

func openSource(ctx *cli.Context, logger zerolog.Logger) (*pathSource, error) {
	if ctx.NArg() > 0 {
		name := ctx.Args().First()
		logger.Debug().Str("list", name).Msg("reading list from file")
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return newFileSource(file), nil
	}

	if ctx.Bool("update") {
		logger.Debug().Msg("updating existing index")
		store, err := index.OpenStore(index.IndexDirName, false)
		if err != nil {
			return nil, err
		}
		file, err := store.Open(index.FileListFilename)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		var list index.FileList
		if err := list.Read(file); err != nil {
			return nil, err
		}
		return &pathSource{paths: list.Paths()}, nil
	}

	logger.Debug().Msg("reading list from standard input")
	return newFileSource(os.Stdin), nil
}

func newFileSource(file *os.File) *pathSource {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &pathSource{file: file, scanner: scanner}
}

func (s *pathSource) Next() (string, error) {
	if s.scanner == nil {
		if s.pos >= len(s.paths) {
			return "", io.EOF
		}
		path := s.paths[s.pos]
		s.pos++
		return path, nil
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *pathSource) Close() {
	if s.file != nil && s.file != os.Stdin {
		s.file.Close()
	}
}

func humanSize(size uint64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f kB", float64(size)/(1<<10))
	}
	return fmt.Sprintf("%d B", size)
}
