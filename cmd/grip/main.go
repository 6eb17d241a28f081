// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

// grip searches the corpus through the trigram index built by gripgen,
// like grep -r without the full scan.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/urfave/cli.v1"

	"github.com/tex/grip/index"
	"github.com/tex/grip/pattern"
	"github.com/tex/grip/search"
)

const version = "0.2.0"

func main() {
	cli.VersionFlag = cli.BoolFlag{Name: "version, V", Usage: "print the version"}

	app := cli.NewApp()
	app.Name = "grip"
	app.Usage = "search files using the trigram index"
	app.ArgsUsage = "PATTERN"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "ignore-case, i", Usage: "case insensitive match"},
		cli.BoolFlag{Name: "basic-regexp, G", Usage: "PATTERN is a basic regular expression"},
		cli.BoolFlag{Name: "extended-regexp, E", Usage: "PATTERN is an extended regular expression"},
		cli.BoolFlag{Name: "files-with-matches, l", Usage: "print only names of matching files"},
		cli.BoolFlag{Name: "no-messages, s", Usage: "suppress file error messages"},
		cli.StringFlag{Name: "dir, d", Usage: "index directory (default: nearest ancestor)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func patternMode(ctx *cli.Context) pattern.Mode {
	switch {
	case ctx.Bool("extended-regexp"):
		return pattern.Extended
	case ctx.Bool("basic-regexp"):
		return pattern.Basic
	}
	return pattern.Fixed
}

func run(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		cli.ShowAppHelp(ctx)
		return cli.NewExitError("", 2)
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	logger := zerolog.New(writer).With().Timestamp().Logger()

	pat, err := pattern.New(ctx.Args().First(), patternMode(ctx), !ctx.Bool("ignore-case"))
	if err != nil {
		return err
	}

	db, err := index.Open(ctx.String("dir"))
	if err != nil {
		return err
	}
	defer db.Close()

	s := search.New(db, pat)
	if !ctx.Bool("no-messages") {
		s.FileError = func(err error) {
			logger.Warn().Msg(err.Error())
		}
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	listOnly := ctx.Bool("files-with-matches")
	matched := false
	err = s.Search(func(res search.Result) bool {
		matched = true
		switch {
		case res.Binary:
			fmt.Fprintf(out, "Binary file %s matches\n", res.Path)
			return false
		case listOnly:
			fmt.Fprintln(out, res.Path)
			return false
		}
		fmt.Fprintf(out, "%s:%d:%s\n", res.Path, res.LineNo, res.Line)
		return true
	})
	if err != nil {
		return err
	}

	if !matched {
		// grep convention: no match is a distinct exit status
		out.Flush()
		os.Exit(1)
	}
	return nil
}
