package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/query"
)

func (s *Server) registerTools() {
	s.registerGatherTool()
	s.registerCacheStatsTool()
	s.registerListCollectorsTool()
}

// ===== GATHER =====

type gatherInput struct {
	Query      string `json:"query" jsonschema:"required,Instruction text to gather context for"`
	WorkingDir string `json:"working_dir,omitempty" jsonschema:"Absolute path of the workspace the instruction refers to"`
}

type gatherWarning struct {
	Collector string `json:"collector" jsonschema:"Collector that failed"`
	Reason    string `json:"reason" jsonschema:"Redacted failure reason"`
}

type gatherOutput struct {
	RequestID   string          `json:"request_id" jsonschema:"Run identifier"`
	Context     string          `json:"context" jsonschema:"Assembled context payload"`
	FromCache   bool            `json:"from_cache" jsonschema:"True when served from the aggregate cache"`
	Truncated   bool            `json:"truncated" jsonschema:"True when the payload was cut to fit the unit budget"`
	Fingerprint string          `json:"fingerprint" jsonschema:"Repository state the payload was built against"`
	Warnings    []gatherWarning `json:"warnings,omitempty" jsonschema:"Non-required collector failures excluded from the payload"`
}

func (s *Server) gather(ctx context.Context, args gatherInput) (gatherOutput, error) {
	out, err := s.gatherer.Run(ctx, query.New(args.Query, args.WorkingDir), s.enabled)
	if err != nil {
		s.logger.Warn("gather_context failed", zap.Error(err))
		return gatherOutput{}, err
	}

	result := gatherOutput{
		RequestID:   out.RequestID,
		Context:     out.Text,
		FromCache:   out.CacheHit,
		Truncated:   out.Truncated,
		Fingerprint: out.Fingerprint,
	}
	for _, w := range out.Warnings {
		result.Warnings = append(result.Warnings, gatherWarning{
			Collector: w.CollectorID,
			Reason:    w.Reason,
		})
	}
	return result, nil
}

func (s *Server) registerGatherTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "gather_context",
		Description: "Assemble a context payload for an instruction from the enabled collectors",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args gatherInput) (*mcp.CallToolResult, gatherOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "gather_context")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "gather_context")
			s.metrics.RecordInvocation(ctx, "gather_context", time.Since(start), toolErr)
		}()

		out, err := s.gather(ctx, args)
		if err != nil {
			toolErr = err
			return nil, gatherOutput{}, err
		}
		return nil, out, nil
	})
}

// ===== CACHE STATS =====

type cacheStatsInput struct{}

type cacheStatsOutput struct {
	Entries          int   `json:"entries" jsonschema:"Live cached aggregates"`
	Hits             int64 `json:"hits" jsonschema:"Cache hits since start"`
	Misses           int64 `json:"misses" jsonschema:"Cache misses since start"`
	Expired          int64 `json:"expired" jsonschema:"Entries dropped on TTL expiry"`
	Evictions        int64 `json:"evictions" jsonschema:"Entries dropped to the size cap"`
	Requests         int64 `json:"requests" jsonschema:"Gather runs since start"`
	GlobalTimeouts   int64 `json:"global_timeouts" jsonschema:"Runs that hit the global deadline"`
	RequiredFailures int64 `json:"required_failures" jsonschema:"Runs aborted by a required collector"`
}

func (s *Server) cacheStats() cacheStatsOutput {
	cs := s.store.Stats()
	gs := s.gatherer.Stats()
	return cacheStatsOutput{
		Entries:          cs.Entries,
		Hits:             cs.Hits,
		Misses:           cs.Misses,
		Expired:          cs.Expired,
		Evictions:        cs.Evictions,
		Requests:         gs.Requests,
		GlobalTimeouts:   gs.GlobalTimeouts,
		RequiredFailures: gs.RequiredFailures,
	}
}

func (s *Server) registerCacheStatsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report aggregate cache and gather run counters",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cacheStatsInput) (*mcp.CallToolResult, cacheStatsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "cache_stats")
		defer func() {
			s.metrics.DecrementActive(ctx, "cache_stats")
			s.metrics.RecordInvocation(ctx, "cache_stats", time.Since(start), nil)
		}()

		return nil, s.cacheStats(), nil
	})
}

// ===== LIST COLLECTORS =====

type listCollectorsInput struct{}

type collectorInfo struct {
	ID       string `json:"id" jsonschema:"Collector identifier"`
	Priority int    `json:"priority" jsonschema:"Assembly position, smaller sorts earlier"`
	Required bool   `json:"required" jsonschema:"Failure aborts the whole run"`
	Enabled  bool   `json:"enabled" jsonschema:"Collector participates in gather runs"`
}

type listCollectorsOutput struct {
	Collectors []collectorInfo `json:"collectors" jsonschema:"Registered collectors in assembly order"`
}

func (s *Server) listCollectors() listCollectorsOutput {
	var out listCollectorsOutput
	for _, reg := range s.registry.All() {
		id := reg.Collector.ID()
		out.Collectors = append(out.Collectors, collectorInfo{
			ID:       id,
			Priority: reg.Priority,
			Required: reg.Required,
			Enabled:  s.enabled[id],
		})
	}
	return out
}

func (s *Server) registerListCollectorsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_collectors",
		Description: "List registered collectors with their priority, required flag, and enablement",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listCollectorsInput) (*mcp.CallToolResult, listCollectorsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "list_collectors")
		defer func() {
			s.metrics.DecrementActive(ctx, "list_collectors")
			s.metrics.RecordInvocation(ctx, "list_collectors", time.Since(start), nil)
		}()

		return nil, s.listCollectors(), nil
	})
}
