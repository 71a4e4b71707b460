// Command icypeek prints the now-playing titles a station announces, using
// the same watcher as the player.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edward-ap/recradio/internal/catalog"
	"github.com/edward-ap/recradio/internal/metadata"
)

type printfLogger struct{ log zerolog.Logger }

func (p printfLogger) Printf(format string, args ...any) {
	p.log.Debug().Msgf(format, args...)
}

func main() {
	limit := flag.Int("n", 0, "exit after this many titles (0 = run until interrupted)")
	timeout := flag.Duration("timeout", 0, "give up after this long (0 = no limit)")
	verbose := flag.Bool("v", false, "log watcher diagnostics")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: icypeek [flags] <stream-url | station name>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).Level(level).With().Timestamp().Logger()

	target := strings.Join(flag.Args(), " ")
	url := target
	if !strings.Contains(target, "://") {
		st, ok := catalog.Default().Find(target)
		if !ok {
			log.Fatal().Str("station", target).Msg("unknown station")
		}
		url = st.URI
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	seen := 0
	last := ""
	w := metadata.NewWatcher(nil, printfLogger{log: log})
	err := w.Watch(ctx, url, func(info metadata.Info) {
		if info.Title == "" || info.Title == last {
			return
		}
		last = info.Title
		seen++
		if info.Station != "" {
			fmt.Printf("%s | %s\n", info.Station, info.Title)
		} else {
			fmt.Println(info.Title)
		}
		if *limit > 0 && seen >= *limit {
			cancel()
		}
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Str("url", url).Msg("no metadata")
	}
}
