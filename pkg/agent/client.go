package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
)

// InvokeInput carries one streamed agent invocation request.
type InvokeInput struct {
	SessionID string
	InputText string
}

// Stream yields normalized trace events from one invocation. Chunk events
// carry response text in Text; Recv returns io.EOF on clean stream end.
type Stream interface {
	Recv() (*models.TraceEvent, error)
	Close() error
}

// Runtime opens streamed agent invocations. Implemented by the Bedrock
// adapter in production and by fakes in tests.
type Runtime interface {
	Invoke(ctx context.Context, in InvokeInput) (Stream, error)
}

// BedrockRuntime is the production Runtime over the Bedrock agent runtime.
type BedrockRuntime struct {
	client *bedrockagentruntime.Client
	cfg    *config.AgentConfig
	logger *slog.Logger
}

// NewBedrockRuntime creates the production runtime using ambient AWS
// credentials and the configured region.
func NewBedrockRuntime(ctx context.Context, cfg *config.AgentConfig) (*BedrockRuntime, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &BedrockRuntime{
		client: bedrockagentruntime.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: slog.Default().With("component", "agent-runtime"),
	}, nil
}

// Invoke opens a streamed invocation with tracing enabled.
func (r *BedrockRuntime) Invoke(ctx context.Context, in InvokeInput) (Stream, error) {
	out, err := r.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(r.cfg.AgentID),
		AgentAliasId: aws.String(r.cfg.AgentAliasID),
		SessionId:    aws.String(in.SessionID),
		InputText:    aws.String(in.InputText),
		EnableTrace:  aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("InvokeAgent failed: %w", err)
	}
	return &bedrockStream{
		stream: out.GetStream(),
		now:    time.Now,
	}, nil
}

// bedrockStream adapts the SDK event stream, normalizing vendor events at
// the boundary. One vendor event may expand to several normalized events.
type bedrockStream struct {
	stream  *bedrockagentruntime.InvokeAgentEventStream
	pending []*models.TraceEvent
	now     func() time.Time
}

func (s *bedrockStream) Recv() (*models.TraceEvent, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}

		vendorEv, ok := <-s.stream.Events()
		if !ok {
			if err := s.stream.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		s.pending = normalizeResponseEvent(vendorEv, s.now())
	}
}

func (s *bedrockStream) Close() error {
	return s.stream.Close()
}
