package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cmdlens.v1.Usage"

// Method names, one unary method per operation.
const (
	MethodRecordInvocation      = "RecordInvocation"
	MethodRecordQuery           = "RecordQuery"
	MethodRecordResourceAccess  = "RecordResourceAccess"
	MethodCleanupOldData        = "CleanupOldData"
	MethodEstimateCleanup       = "EstimateCleanup"
	MethodCommandStats          = "CommandStats"
	MethodTopCommands           = "TopCommands"
	MethodRecentQueries         = "RecentQueries"
	MethodRecentResources       = "RecentResources"
	MethodTopResources          = "TopResources"
	MethodCommandHistory        = "CommandHistory"
	MethodDetectPatterns        = "DetectPatterns"
	MethodGetPatterns           = "GetPatterns"
	MethodGetPatternSuggestions = "GetPatternSuggestions"
)

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds a method descriptor that decodes Req, runs call against the
// registered service.API and honours the server's interceptor chain.
func unary[Req, Resp any](method string, call func(context.Context, service.API, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			api := srv.(service.API)
			if interceptor == nil {
				return call(ctx, api, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ctx, api, req.(*Req))
			})
		},
	}
}

// usageServiceDesc describes cmdlens.v1.Usage for grpc.Server.RegisterService.
var usageServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*service.API)(nil),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "cmdlens/v1/usage",
	Methods: []grpc.MethodDesc{
		unary(MethodRecordInvocation, func(ctx context.Context, api service.API, in *RecordInvocationRequest) (*Empty, error) {
			err := api.RecordInvocation(ctx, storage.NewInvocation{
				CommandID:       in.CommandID,
				ExecutionTimeMs: in.ExecutionTimeMs,
				Success:         in.Success,
				ErrorMessage:    in.ErrorMessage,
				Context:         in.Context,
			})
			if err != nil {
				return nil, err
			}
			return &Empty{}, nil
		}),
		unary(MethodRecordQuery, func(ctx context.Context, api service.API, in *RecordQueryRequest) (*Empty, error) {
			if err := api.RecordQuery(ctx, in.Query, in.ResultCount); err != nil {
				return nil, err
			}
			return &Empty{}, nil
		}),
		unary(MethodRecordResourceAccess, func(ctx context.Context, api service.API, in *RecordResourceAccessRequest) (*Empty, error) {
			err := api.RecordResourceAccess(ctx, storage.ResourceRef{
				Kind:      in.Kind,
				Name:      in.Name,
				Namespace: in.Namespace,
				Context:   in.Context,
			})
			if err != nil {
				return nil, err
			}
			return &Empty{}, nil
		}),
		unary(MethodCleanupOldData, func(ctx context.Context, api service.API, _ *Empty) (*CleanupResponse, error) {
			n, err := api.CleanupOldData(ctx)
			if err != nil {
				return nil, err
			}
			return &CleanupResponse{Deleted: n}, nil
		}),
		unary(MethodEstimateCleanup, func(ctx context.Context, api service.API, _ *Empty) (*CleanupResponse, error) {
			n, err := api.EstimateCleanup(ctx)
			if err != nil {
				return nil, err
			}
			return &CleanupResponse{Deleted: n}, nil
		}),
		unary(MethodCommandStats, func(ctx context.Context, api service.API, in *CommandStatsRequest) (*CommandStatsResponse, error) {
			stats, err := api.CommandStats(ctx, in.CommandID)
			if err != nil {
				return nil, err
			}
			return &CommandStatsResponse{Stats: orEmpty(stats)}, nil
		}),
		unary(MethodTopCommands, func(ctx context.Context, api service.API, in *LimitRequest) (*CommandStatsResponse, error) {
			stats, err := api.TopCommands(ctx, in.Limit)
			if err != nil {
				return nil, err
			}
			return &CommandStatsResponse{Stats: orEmpty(stats)}, nil
		}),
		unary(MethodRecentQueries, func(ctx context.Context, api service.API, in *LimitRequest) (*QueriesResponse, error) {
			queries, err := api.RecentQueries(ctx, in.Limit)
			if err != nil {
				return nil, err
			}
			return &QueriesResponse{Queries: orEmpty(queries)}, nil
		}),
		unary(MethodRecentResources, func(ctx context.Context, api service.API, in *ResourcesRequest) (*ResourcesResponse, error) {
			resources, err := api.RecentResources(ctx, in.Limit, in.Kind)
			if err != nil {
				return nil, err
			}
			return &ResourcesResponse{Resources: orEmpty(resources)}, nil
		}),
		unary(MethodTopResources, func(ctx context.Context, api service.API, in *ResourcesRequest) (*ResourcesResponse, error) {
			resources, err := api.TopResources(ctx, in.Limit, in.Kind)
			if err != nil {
				return nil, err
			}
			return &ResourcesResponse{Resources: orEmpty(resources)}, nil
		}),
		unary(MethodCommandHistory, func(ctx context.Context, api service.API, in *LimitRequest) (*HistoryResponse, error) {
			history, err := api.CommandHistory(ctx, in.Limit)
			if err != nil {
				return nil, err
			}
			return &HistoryResponse{History: orEmpty(history)}, nil
		}),
		unary(MethodDetectPatterns, func(ctx context.Context, api service.API, in *DetectPatternsRequest) (*PatternsResponse, error) {
			patterns, err := api.DetectPatterns(ctx, in.MinLen, in.MaxLen)
			if err != nil {
				return nil, err
			}
			return &PatternsResponse{Patterns: orEmpty(patterns)}, nil
		}),
		unary(MethodGetPatterns, func(ctx context.Context, api service.API, in *GetPatternsRequest) (*PatternsResponse, error) {
			patterns, err := api.GetPatterns(ctx, in.MinConfidence, in.Limit)
			if err != nil {
				return nil, err
			}
			return &PatternsResponse{Patterns: orEmpty(patterns)}, nil
		}),
		unary(MethodGetPatternSuggestions, func(ctx context.Context, api service.API, in *SuggestionsRequest) (*SuggestionsResponse, error) {
			suggestions, err := api.GetPatternSuggestions(ctx, in.LastCommands, in.Limit)
			if err != nil {
				return nil, err
			}
			return &SuggestionsResponse{Suggestions: orEmpty(suggestions)}, nil
		}),
	},
}
