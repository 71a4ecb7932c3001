// Package rpc exposes the operator command surface over gRPC. Messages are
// google.protobuf.Struct values so clients need no generated stubs.
package rpc

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/siege-simulator/internal/command"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/wire"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "siege.v1.CommandService"

// Full method names.
const (
	ExecuteMethod  = "/" + ServiceName + "/Execute"
	SnapshotMethod = "/" + ServiceName + "/Snapshot"
	CompleteMethod = "/" + ServiceName + "/Complete"
)

// Request and response field names.
const (
	FieldSender  = "sender"
	FieldLine    = "line"
	FieldCommand = "command"
	FieldOK      = "ok"
	FieldMessage = "message"
	FieldCode    = "code"
)

// CommandServiceServer is the server API for siege.v1.CommandService.
type CommandServiceServer interface {
	// Execute runs {sender, line} and returns {command, ok, message, code}.
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Complete returns suggestions for {sender, line}.
	Complete(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

// RegisterCommandServiceServer registers srv on s.
func RegisterCommandServiceServer(s grpc.ServiceRegistrar, srv CommandServiceServer) {
	s.RegisterService(&CommandServiceDesc, srv)
}

// CommandServiceDesc describes siege.v1.CommandService.
var CommandServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommandServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
		{MethodName: "Complete", Handler: completeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "siege/v1/command.proto",
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExecuteMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).Execute(ctx, req.(*structpb.Struct))
	})
}

func snapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SnapshotMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).Snapshot(ctx, req.(*emptypb.Empty))
	})
}

func completeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).Complete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompleteMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).Complete(ctx, req.(*structpb.Struct))
	})
}

// Loop runs functions on the goroutine that owns the game.
type Loop interface {
	Do(ctx context.Context, fn func(*game.Game) error) error
}

// CommandService implements CommandServiceServer on top of a game loop and a
// command dispatcher.
type CommandService struct {
	loop       Loop
	dispatcher *command.Dispatcher
	log        logging.Logger
}

// NewCommandService returns a service running commands through d on loop.
func NewCommandService(loop Loop, d *command.Dispatcher, log logging.Logger) *CommandService {
	if log == nil {
		log = logging.Noop()
	}
	return &CommandService{loop: loop, dispatcher: d, log: log}
}

// Execute runs one command line. Command failures are reported in the
// response; only transport and loop failures become gRPC errors.
func (s *CommandService) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sender, line := stringField(req, FieldSender), stringField(req, FieldLine)
	if strings.TrimSpace(line) == "" {
		return nil, status.Error(codes.InvalidArgument, "line is required")
	}

	ctx, span := StartChildSpan(ctx, "CommandService.Execute", attribute.String("command.sender", sender))
	defer span.End()

	var res command.Result
	err := s.loop.Do(ctx, func(g *game.Game) error {
		res = s.dispatcher.Execute(ctx, g, sender, line)
		return nil
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldCommand: structpb.NewStringValue(res.Command),
		FieldOK:      structpb.NewBoolValue(res.OK()),
		FieldMessage: structpb.NewStringValue(command.Describe(res)),
		FieldCode:    structpb.NewStringValue(status.Code(ToStatusError(res.Err)).String()),
	}}, nil
}

// Snapshot returns the current game state.
func (s *CommandService) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var snap game.Snapshot
	err := s.loop.Do(ctx, func(g *game.Game) error {
		snap = g.Snapshot()
		return nil
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return wire.Snapshot(snap), nil
}

// Complete returns completion suggestions for a partial line.
func (s *CommandService) Complete(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	sender, line := stringField(req, FieldSender), stringField(req, FieldLine)
	var out []string
	err := s.loop.Do(ctx, func(g *game.Game) error {
		out = s.dispatcher.Complete(g, sender, line)
		return nil
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(out))}
	for _, v := range out {
		list.Values = append(list.Values, structpb.NewStringValue(v))
	}
	return list, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// CommandClient is a client for siege.v1.CommandService.
type CommandClient struct {
	cc grpc.ClientConnInterface
}

// NewCommandClient wraps a connection.
func NewCommandClient(cc grpc.ClientConnInterface) *CommandClient {
	return &CommandClient{cc: cc}
}

// Execute runs line as sender. An empty sender is the console.
func (c *CommandClient) Execute(ctx context.Context, sender, line string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSender: structpb.NewStringValue(sender),
		FieldLine:   structpb.NewStringValue(line),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CommandClient) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CommandClient) Complete(ctx context.Context, sender, line string, opts ...grpc.CallOption) ([]string, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSender: structpb.NewStringValue(sender),
		FieldLine:   structpb.NewStringValue(line),
	}}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, CompleteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	suggestions := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		suggestions = append(suggestions, v.GetStringValue())
	}
	return suggestions, nil
}
