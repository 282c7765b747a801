package api

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/techrace-backend/internal/engine"
	"github.com/xtding233/techrace-backend/internal/match"
	"github.com/xtding233/techrace-backend/internal/rules"
	"github.com/xtding233/techrace-backend/internal/store"
)

// ErrorDomain tags errdetails.ErrorInfo.
const ErrorDomain = "techrace"

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "techrace.v1.RoundService"

// RoundServiceServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct documents with the same fields as the HTTP API.
type RoundServiceServer interface {
	CreateGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitAllocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateAllocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveRound(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(RoundServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RoundServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(RoundServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// RoundServiceDesc describes the service for grpc.Server.RegisterService.
var RoundServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RoundServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateGame", RoundServiceServer.CreateGame),
		unaryHandler("SubmitAllocation", RoundServiceServer.SubmitAllocation),
		unaryHandler("ValidateAllocation", RoundServiceServer.ValidateAllocation),
		unaryHandler("ResolveRound", RoundServiceServer.ResolveRound),
		unaryHandler("GetState", RoundServiceServer.GetState),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "techrace/v1/round.proto",
}

// RegisterRoundService attaches srv to s.
func RegisterRoundService(s grpc.ServiceRegistrar, srv RoundServiceServer) {
	s.RegisterService(&RoundServiceDesc, srv)
}

// GRPCServer implements RoundServiceServer over Games.
type GRPCServer struct {
	games Games
}

func NewGRPCServer(g Games) *GRPCServer { return &GRPCServer{games: g} }

type allocationReq struct {
	Game       string            `json:"game"`
	Team       engine.Team       `json:"team"`
	Allocation engine.Allocation `json:"allocation"`
}

type resolveReq struct {
	Game  string `json:"game"`
	Force bool   `json:"force"`
}

type stateReq struct {
	Game string      `json:"game"`
	Role engine.Role `json:"role"`
}

func (s *GRPCServer) CreateGame(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createReq
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	g, err := s.games.CreateGame(ctx, match.CreateRequest{
		Scenario: req.Scenario,
		Overrides: rules.Overrides{
			MaxRounds:             req.MaxRounds,
			CarryFraction:         req.CarryFraction,
			RequireAllSubmissions: req.RequireAllSubmissions,
			AnnounceDiscoveries:   req.AnnounceDiscoveries,
		},
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(createResp{ID: g.ID, Config: g.Config, Status: g.State.Status(), Round: g.State.Round})
}

func (s *GRPCServer) SubmitAllocation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req allocationReq
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	b, err := s.games.Submit(ctx, req.Game, req.Team, &req.Allocation)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(budgetResp{Budget: b, Remaining: b.Remaining()})
}

func (s *GRPCServer) ValidateAllocation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req allocationReq
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	b, err := s.games.Validate(ctx, req.Game, req.Team, &req.Allocation)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(budgetResp{Budget: b, Remaining: b.Remaining()})
}

func (s *GRPCServer) ResolveRound(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req resolveReq
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	st, err := s.games.Resolve(ctx, req.Game, req.Force)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(st)
}

func (s *GRPCServer) GetState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req stateReq
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		return nil, status.Error(codes.InvalidArgument, "role is required")
	}
	st, err := s.games.View(ctx, req.Game, req.Role)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(st)
}

// toStruct converts any JSON-encodable value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, store.ErrConflict):
		return codes.Aborted
	}
	switch engine.CodeOf(err) {
	case engine.CodeInvalidAllocation, engine.CodeInvalidConfig:
		return codes.InvalidArgument
	case engine.CodeUnknownTeam:
		return codes.NotFound
	case engine.CodeAlreadyResolved, engine.CodeIncompleteSubmissions, engine.CodePostMaxRounds:
		return codes.FailedPrecondition
	case engine.CodeInvalidState:
		return codes.DataLoss
	}
	return codes.Internal
}

// toStatus converts an error to a gRPC status with errdetails.ErrorInfo.
func toStatus(err error) error {
	code := grpcCode(err)
	reason := string(engine.CodeOf(err))
	var meta map[string]string
	var ee *engine.Error
	msg := err.Error()
	if errors.As(err, &ee) {
		meta = ee.Metadata
		msg = ee.Message
	}
	if reason == "" {
		switch {
		case errors.Is(err, store.ErrNotFound):
			reason = "GAME_NOT_FOUND"
		case errors.Is(err, store.ErrConflict):
			reason = "CONFLICT"
		default:
			reason = "INTERNAL"
		}
	}
	st := status.New(code, msg)
	withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: meta,
	})
	if derr != nil {
		// If we can't attach details, return the basic status
		return st.Err()
	}
	return withInfo.Err()
}

var _ RoundServiceServer = (*GRPCServer)(nil)
