// Package simserver exposes running places over gRPC. Messages are
// google.protobuf.Struct values so clients need no generated stubs.
package simserver

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/internal/logging"
	"github.com/signalsfoundry/roadsim/internal/sim/state"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "roadsim.v1.PerceptionService"

const (
	ListPlacesMethod     = "/" + ServiceName + "/ListPlaces"
	GetSnapshotMethod    = "/" + ServiceName + "/GetSnapshot"
	GetPerceptionsMethod = "/" + ServiceName + "/GetPerceptions"
	StepMethod           = "/" + ServiceName + "/Step"
)

// MaxStepTicks bounds the ticks a single Step call may run.
const MaxStepTicks = 10000

// PerceptionServer is the server API of roadsim.v1.PerceptionService.
//
// Requests:
//
//	ListPlaces     {}
//	GetSnapshot    {"place": string}
//	GetPerceptions {"place": string, "agent_id": uuid}
//	Step           {"place": string, "ticks": number (default 1)}
type PerceptionServer interface {
	ListPlaces(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPerceptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(PerceptionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(PerceptionServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		})
	}
}

// PerceptionServiceDesc describes roadsim.v1.PerceptionService for
// grpc.Server.RegisterService.
var PerceptionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PerceptionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPlaces", Handler: unaryHandler(ListPlacesMethod, PerceptionServer.ListPlaces)},
		{MethodName: "GetSnapshot", Handler: unaryHandler(GetSnapshotMethod, PerceptionServer.GetSnapshot)},
		{MethodName: "GetPerceptions", Handler: unaryHandler(GetPerceptionsMethod, PerceptionServer.GetPerceptions)},
		{MethodName: "Step", Handler: unaryHandler(StepMethod, PerceptionServer.Step)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roadsim/v1/perception.proto",
}

// RegisterPerceptionServer registers srv on s.
func RegisterPerceptionServer(s grpc.ServiceRegistrar, srv PerceptionServer) {
	s.RegisterService(&PerceptionServiceDesc, srv)
}

// PerceptionClient calls roadsim.v1.PerceptionService.
type PerceptionClient struct {
	cc grpc.ClientConnInterface
}

// NewPerceptionClient wraps an established connection.
func NewPerceptionClient(cc grpc.ClientConnInterface) *PerceptionClient {
	return &PerceptionClient{cc: cc}
}

func (c *PerceptionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PerceptionClient) ListPlaces(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListPlacesMethod, in, opts)
}

func (c *PerceptionClient) GetSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetSnapshotMethod, in, opts)
}

func (c *PerceptionClient) GetPerceptions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetPerceptionsMethod, in, opts)
}

func (c *PerceptionClient) Step(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StepMethod, in, opts)
}

// Service implements PerceptionServer over the places of a registry.
type Service struct {
	registry *state.Registry
	log      logging.Logger
}

var _ PerceptionServer = (*Service)(nil)

// NewService serves the places of registry.
func NewService(registry *state.Registry, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{registry: registry, log: log}
}

func (s *Service) ListPlaces(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	places := s.registry.Places()
	out := make([]any, 0, len(places))
	for _, p := range places {
		snap := p.Snapshot()
		out = append(out, map[string]any{
			"id":       string(snap.ID),
			"tick":     snap.Tick,
			"time":     snap.Time.Format(time.RFC3339Nano),
			"mobiles":  len(snap.Mobiles),
			"statics":  len(snap.Statics),
			"drivers":  p.DriverCount(),
			"segments": snap.Segments,
		})
	}
	logging.LoggerFromContext(ctx, s.log).Debug(ctx, "listed places", logging.Int("count", len(out)))
	return newStruct(map[string]any{"places": out})
}

func (s *Service) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.place(in)
	if err != nil {
		return nil, err
	}
	snap := p.Snapshot()
	return newStruct(map[string]any{
		"place":    string(snap.ID),
		"tick":     snap.Tick,
		"time":     snap.Time.Format(time.RFC3339Nano),
		"segments": snap.Segments,
		"mobiles":  entityValues(snap.Mobiles),
		"statics":  entityValues(snap.Statics),
	})
}

func (s *Service) GetPerceptions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.place(in)
	if err != nil {
		return nil, err
	}
	raw, err := requiredString(in, "agent_id")
	if err != nil {
		return nil, err
	}
	agent, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: agent_id %q: %v", ErrInvalidArgument, raw, err)
	}
	static, dynamic, err := p.Perceptions(agent)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{
		"place":    string(p.ID()),
		"agent_id": agent.String(),
		"tick":     p.Clock().Steps(),
		"static":   resultValues(static),
		"dynamic":  resultValues(dynamic),
	})
}

func (s *Service) Step(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.place(in)
	if err != nil {
		return nil, err
	}
	ticks := 1
	if v, ok := in.GetFields()["ticks"]; ok {
		n := v.GetNumberValue()
		if n < 1 || n > MaxStepTicks || n != float64(int(n)) {
			return nil, fmt.Errorf("%w: ticks must be an integer in [1, %d], got %v", ErrInvalidArgument, MaxStepTicks, n)
		}
		ticks = int(n)
	}

	log := logging.LoggerFromContext(ctx, s.log)
	var (
		last     state.TickReport
		actions  int
		degraded int
	)
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last, err = p.RunTick(ctx)
		if err != nil {
			return nil, err
		}
		actions += last.Actions
		if last.PerceptionErr != nil || last.DecisionErr != nil {
			degraded++
		}
	}
	log.Info(ctx, "stepped place",
		logging.String("place", string(p.ID())),
		logging.Int("ticks", ticks),
		logging.Uint64("tick", last.Tick),
	)
	return newStruct(map[string]any{
		"place":          string(p.ID()),
		"tick":           last.Tick,
		"time":           p.Clock().Now().Format(time.RFC3339Nano),
		"actions":        actions,
		"degraded_ticks": degraded,
	})
}

func (s *Service) place(in *structpb.Struct) (*state.Place, error) {
	id, err := requiredString(in, "place")
	if err != nil {
		return nil, err
	}
	return s.registry.Place(core.PlaceID(id))
}

func requiredString(in *structpb.Struct, key string) (string, error) {
	v := in.GetFields()[key].GetStringValue()
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, key)
	}
	return v, nil
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func entityValues(states []state.EntityState) []any {
	sorted := slices.Clone(states)
	slices.SortFunc(sorted, func(a, b state.EntityState) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	out := make([]any, 0, len(sorted))
	for _, e := range sorted {
		v := map[string]any{
			"id":        e.ID.String(),
			"type":      e.Type,
			"mobile":    e.Mobile,
			"segment":   string(e.Segment),
			"curviline": e.Curviline,
			"jutting":   e.Jutting,
			"x":         e.X,
			"y":         e.Y,
		}
		if e.Mobile {
			v["entry"] = string(e.Entry)
			v["speed"] = e.Speed
		}
		out = append(out, v)
	}
	return out
}

func resultValues(results []core.CullingResult1D5) []any {
	out := make([]any, 0, len(results))
	for _, r := range results {
		v := map[string]any{
			"frustum_id":       r.FrustumID.String(),
			"classification":   r.Classification.String(),
			"distance":         r.Distance,
			"lateral_distance": r.LateralDistance,
			"in_front":         r.InFront,
			"same_direction":   r.SameDirection,
		}
		if r.Entity != nil {
			v["entity_id"] = r.Entity.ID().String()
			v["type"] = string(r.Entity.Base().Type())
		}
		out = append(out, v)
	}
	return out
}
