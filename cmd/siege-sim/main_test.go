package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/internal/command"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/model"
)

func arenaScript(extra ...string) []string {
	return append(append([]string(nil), defaultScript[:len(defaultScript)-1]...), extra...)
}

func TestSimulateShortMatch(t *testing.T) {
	var buf bytes.Buffer
	out, err := simulate(context.Background(), Options{
		Script: arenaScript("play 5 3", "detonate arena 101 64 0"),
		Tick:   100 * time.Millisecond,
		Limit:  time.Minute,
		Seed:   7,
	}, nil, &buf)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !out.Ended || out.Winner != model.TeamBlue || out.Reason != game.ReasonTimeExpired {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Elapsed < 5*time.Second || out.Elapsed > 7*time.Second {
		t.Fatalf("elapsed = %s", out.Elapsed)
	}
	if out.Snapshot.Phase != game.PhaseEnded {
		t.Fatalf("phase = %s", out.Snapshot.Phase)
	}
	if !strings.Contains(buf.String(), "> play 5 3\nGame starting...") {
		t.Fatalf("transcript missing play:\n%s", buf.String())
	}
}

func TestSimulateNeedsAGame(t *testing.T) {
	_, err := simulate(context.Background(), Options{Script: arenaScript(), Limit: time.Second}, nil, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected an error when the script never plays")
	}
}

func TestSimulateRejectsUnknownCommands(t *testing.T) {
	_, err := simulate(context.Background(), Options{Script: []string{"dance"}, Limit: time.Second}, nil, &bytes.Buffer{})
	if !errors.Is(err, command.ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestReadScript(t *testing.T) {
	lines, err := readScript(strings.NewReader("# arena\n\n  settower Blue 20  \nplay\n"))
	if err != nil {
		t.Fatalf("readScript: %v", err)
	}
	if len(lines) != 2 || lines[0] != "settower Blue 20" || lines[1] != "play" {
		t.Fatalf("lines = %q", lines)
	}
}
