// Command siege-sim plays one headless match in accelerated time and prints
// the outcome. The arena is built from a command script, one command per line.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/siege-simulator/internal/command"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/sim"
	"github.com/signalsfoundry/siege-simulator/model"
	"github.com/signalsfoundry/siege-simulator/timectrl"
)

// defaultScript builds a small two-player arena and starts a short game.
var defaultScript = []string{
	"player alice arena 5 64 0",
	"player bob arena 95 64 0",
	"settower Blue 20 arena 0 64 0",
	"settower Red 20 arena 100 64 0",
	"setspawn Blue arena 10 64 0",
	"setspawn Red arena 90 64 0",
	"setppspawn 15 5 arena 50 64 0",
	"setteam Blue alice",
	"setteam Red bob",
	"play 120 20",
}

// Options configures one simulated match.
type Options struct {
	Script []string
	Tick   time.Duration
	// Limit caps simulated time in case the script never ends the game.
	Limit time.Duration
	Seed  uint64
}

// Outcome summarises a finished match.
type Outcome struct {
	Winner   model.Team
	Reason   game.EndReason
	Ended    bool
	Elapsed  time.Duration
	Snapshot game.Snapshot
}

func main() {
	scriptPath := flag.String("script", "", "file with one command per line; empty runs the built-in arena")
	tick := flag.Duration("tick", 50*time.Millisecond, "simulated time per loop step")
	limit := flag.Duration("limit", 30*time.Minute, "maximum simulated time")
	seed := flag.Uint64("seed", 1, "seed for robot spawn ties and powerup drops")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	script := defaultScript
	if *scriptPath != "" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			log.Error(ctx, "failed to open script", logging.String("path", *scriptPath), logging.Err(err))
			os.Exit(1)
		}
		script, err = readScript(f)
		_ = f.Close()
		if err != nil {
			log.Error(ctx, "failed to read script", logging.String("path", *scriptPath), logging.Err(err))
			os.Exit(1)
		}
	}

	out, err := simulate(ctx, Options{Script: script, Tick: *tick, Limit: *limit, Seed: *seed}, log, os.Stdout)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	if !out.Ended {
		fmt.Printf("No result after %s of simulated time.\n", out.Elapsed)
		return
	}
	fmt.Printf("%s wins (%s) after %s.\n", out.Winner, out.Reason, out.Elapsed)
}

// readScript returns the non-empty lines of r, skipping # comments.
func readScript(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// simulate runs the script on a fresh arena and steps the loop until the game
// ends or opts.Limit of simulated time has passed. Command results are
// echoed to w.
func simulate(ctx context.Context, opts Options, log logging.Logger, w io.Writer) (Outcome, error) {
	if log == nil {
		log = logging.Noop()
	}
	cfg := sim.DefaultConfig()
	cfg.Mode = timectrl.Accelerated
	if opts.Tick > 0 {
		cfg.Tick = opts.Tick
	}
	runner := sim.NewRunner(cfg, log,
		sim.WithGameOptions(game.WithRand(rand.New(rand.NewPCG(opts.Seed, opts.Seed)))),
	)
	g := runner.Game()
	g.AddListener(game.NewLogListener(log))
	dispatcher := command.NewDispatcher(runner.Sandbox(), nil, log)

	for _, line := range opts.Script {
		res := dispatcher.Execute(ctx, g, "", line)
		fmt.Fprintf(w, "> %s\n%s\n", line, command.Describe(res))
		if !res.OK() && errors.Is(res.Err, command.ErrUnknownCommand) {
			return Outcome{}, fmt.Errorf("script line %q: %w", line, res.Err)
		}
	}
	if !g.Playing() {
		return Outcome{}, errors.New("the script did not start a game")
	}

	start := runner.Clock().Now()
	for g.Playing() && runner.Clock().Now().Sub(start) < opts.Limit {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		runner.Step()
	}

	out := Outcome{Elapsed: runner.Clock().Now().Sub(start), Snapshot: g.Snapshot()}
	out.Winner, out.Reason, out.Ended = g.LastResult()
	if status := dispatcher.Execute(ctx, g, "", "status"); status.OK() {
		fmt.Fprintln(w, status.Message)
	}
	return out, nil
}
