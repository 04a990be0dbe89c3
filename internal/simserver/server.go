package simserver

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/roadsim/internal/logging"
	"github.com/signalsfoundry/roadsim/internal/observability"
)

// Config wires the ambient stack into a server.
type Config struct {
	Logger  logging.Logger
	Metrics *observability.RPCCollector
	// Tracing installs the otelgrpc stats handler.
	Tracing bool
}

// Server bundles the gRPC server with its health service.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
}

// NewServer builds a gRPC server exposing svc and the standard health
// service. Interceptors run request id, metrics, tracing, then error mapping.
func NewServer(svc PerceptionServer, cfg Config, opts ...grpc.ServerOption) *Server {
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			cfg.Metrics.UnaryServerInterceptor(),
			TracingUnaryServerInterceptor(),
			ErrorMappingUnaryServerInterceptor(),
		),
	}
	if cfg.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	gs := grpc.NewServer(append(serverOpts, opts...)...)
	RegisterPerceptionServer(gs, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{GRPC: gs, Health: hs}
}

// Stop marks the server as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.Health.Shutdown()
	s.GRPC.GracefulStop()
}

// DebugHandler renders service responses as JSON over HTTP:
//
//	GET /debug/places
//	GET /debug/places/{place}
//	GET /debug/places/{place}/agents/{agent}/perceptions
func DebugHandler(svc PerceptionServer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /debug/places", func(w http.ResponseWriter, r *http.Request) {
		writeProto(w, r, svc.ListPlaces, map[string]any{})
	})
	mux.HandleFunc("GET /debug/places/{place}", func(w http.ResponseWriter, r *http.Request) {
		writeProto(w, r, svc.GetSnapshot, map[string]any{"place": r.PathValue("place")})
	})
	mux.HandleFunc("GET /debug/places/{place}/agents/{agent}/perceptions", func(w http.ResponseWriter, r *http.Request) {
		writeProto(w, r, svc.GetPerceptions, map[string]any{
			"place":    r.PathValue("place"),
			"agent_id": r.PathValue("agent"),
		})
	})
	return mux
}

type structCall func(context.Context, *structpb.Struct) (*structpb.Struct, error)

var jsonOptions = protojson.MarshalOptions{Multiline: true, Indent: "  "}

func writeProto(w http.ResponseWriter, r *http.Request, call structCall, req map[string]any) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := call(r.Context(), in)
	if err != nil {
		st := status.Convert(ToStatusError(err))
		http.Error(w, st.Message(), httpStatus(st.Code()))
		return
	}
	body, err := jsonOptions.Marshal(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// IsServerClosed reports whether err is the normal result of stopping an
// HTTP or gRPC server.
func IsServerClosed(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped)
}
