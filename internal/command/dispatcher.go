// Package command implements the operator command surface: parsing a command
// line, running it against the game and turning the outcome into a message.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/persist"
	"github.com/signalsfoundry/siege-simulator/model"
	"github.com/signalsfoundry/siege-simulator/world"
)

const tracerName = "github.com/signalsfoundry/siege-simulator/internal/command"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("wrong number of arguments")
	ErrNotANumber     = errors.New("some args are not numbers")
	ErrInvalidTeam    = errors.New("invalid team color")
	ErrNotAPlayer     = errors.New("this command can be called only by players")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrNoStore        = errors.New("no configuration store")
)

// Invocation is one parsed command call.
type Invocation struct {
	Game    *game.Game
	Sandbox *world.Sandbox
	Store   persist.Store
	// Sender is the calling player, or nil for console and RPC callers.
	Sender *world.Player
	Args   []string
	Log    logging.Logger
}

// Command describes one operator command.
type Command struct {
	Name        string
	Usage       string
	Help        string
	// MinArgs is the minimum number of arguments.
	MinArgs     int
	// NeedsPlayer commands act at the sender's location.
	NeedsPlayer bool
	Run         func(ctx context.Context, inv *Invocation) (string, error)
	// Complete suggests values for the argument at index i.
	Complete    func(inv *Invocation, i int) []string
}

// Result is the outcome of Execute.
type Result struct {
	Command string
	Message string
	Err     error
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Dispatcher routes command lines to commands.
type Dispatcher struct {
	sandbox  *world.Sandbox
	store    persist.Store
	log      logging.Logger
	commands map[string]*Command
}

// NewDispatcher returns a dispatcher with the built-in commands. store may be
// nil, in which case save and load fail with ErrNoStore.
func NewDispatcher(sandbox *world.Sandbox, store persist.Store, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Noop()
	}
	d := &Dispatcher{
		sandbox:  sandbox,
		store:    store,
		log:      log,
		commands: make(map[string]*Command),
	}
	for _, c := range builtins() {
		d.Register(c)
	}
	return d
}

// Register adds or replaces a command.
func (d *Dispatcher) Register(c *Command) {
	d.commands[strings.ToLower(c.Name)] = c
}

// Commands returns the registered commands sorted by name.
func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs a command line on behalf of sender, a player name or "" for
// the console. It must run on the game loop.
func (d *Dispatcher) Execute(ctx context.Context, g *game.Game, sender, line string) Result {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return Result{Err: fmt.Errorf("%w: empty command line", ErrUnknownCommand)}
	}
	name := strings.ToLower(fields[0])
	res := Result{Command: name}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "command."+name)
	defer span.End()
	span.SetAttributes(
		attribute.String("command.name", name),
		attribute.Int("command.args", len(fields)-1),
		attribute.String("command.sender", sender),
	)

	c, ok := d.commands[name]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		span.SetStatus(codes.Error, res.Err.Error())
		return res
	}

	inv, err := d.invocation(g, c, sender, fields[1:])
	if err == nil {
		res.Message, err = c.Run(ctx, inv)
	}
	res.Err = err

	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = d.log
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Info(ctx, "command failed",
			logging.String("command", name),
			logging.String("sender", sender),
			logging.Err(err),
		)
		return res
	}
	log.Info(ctx, "command executed",
		logging.String("command", name),
		logging.String("sender", sender),
	)
	return res
}

func (d *Dispatcher) invocation(g *game.Game, c *Command, sender string, args []string) (*Invocation, error) {
	inv := &Invocation{
		Game:    g,
		Sandbox: d.sandbox,
		Store:   d.store,
		Args:    args,
		Log:     d.log,
	}
	if sender != "" && d.sandbox != nil {
		if p, ok := d.sandbox.Player(sender); ok {
			inv.Sender = p
		}
	}
	if c.NeedsPlayer && inv.Sender == nil {
		return nil, ErrNotAPlayer
	}
	if len(args) < c.MinArgs {
		return nil, fmt.Errorf("%w: usage: /%s", ErrUsage, c.Usage)
	}
	return inv, nil
}

// Complete returns suggestions for the last word of a partial command line.
func (d *Dispatcher) Complete(g *game.Game, sender, line string) []string {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(line, " ")) {
		prefix := ""
		if len(fields) == 1 {
			prefix = strings.ToLower(fields[0])
		}
		var out []string
		for _, c := range d.Commands() {
			if strings.HasPrefix(c.Name, prefix) {
				out = append(out, c.Name)
			}
		}
		return out
	}

	c, ok := d.commands[strings.ToLower(fields[0])]
	if !ok || c.Complete == nil {
		return nil
	}
	args := fields[1:]
	prefix := ""
	if !strings.HasSuffix(line, " ") {
		prefix = args[len(args)-1]
		args = args[:len(args)-1]
	}
	inv := &Invocation{Game: g, Sandbox: d.sandbox, Store: d.store, Args: args, Log: d.log}
	if d.sandbox != nil {
		inv.Sender, _ = d.sandbox.Player(sender)
	}
	var out []string
	for _, s := range c.Complete(inv, len(args)) {
		if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
			out = append(out, s)
		}
	}
	return out
}

// Describe renders a result the way operators see it.
func Describe(r Result) string {
	if r.Err == nil {
		return r.Message
	}
	switch {
	case errors.Is(r.Err, ErrUsage),
		errors.Is(r.Err, ErrUnknownCommand),
		errors.Is(r.Err, ErrNotANumber),
		errors.Is(r.Err, ErrInvalidTeam),
		errors.Is(r.Err, ErrNotAPlayer),
		errors.Is(r.Err, ErrUnknownPlayer),
		errors.Is(r.Err, ErrNoStore),
		errors.Is(r.Err, core.ErrInvalidArgument),
		errors.Is(r.Err, core.ErrInvalidState),
		errors.Is(r.Err, core.ErrAlreadyRunning),
		errors.Is(r.Err, core.ErrMissingConfiguration),
		errors.Is(r.Err, core.ErrConfigurationCorrupt),
		errors.Is(r.Err, core.ErrInvalidConfiguration):
		return "Command error: " + r.Err.Error()
	default:
		return "Internal error: please check the server log."
	}
}

func parseTeam(s string) (model.Team, error) {
	team, err := model.ParseTeam(s)
	if err != nil {
		return model.NoTeam, ErrInvalidTeam
	}
	return team, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrNotANumber
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrNotANumber
	}
	return f, nil
}
