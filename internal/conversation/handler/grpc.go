// Package handler exposes conversation handoff over gRPC.
package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/conversation/domain"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdesk.conversation.v1.ConversationService"

// Machine is the handoff state machine the server delegates to.
type Machine interface {
	Get(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error)
	ListMessages(ctx context.Context, gctx guard.Context, conversationID string, limit int) ([]*domain.Message, error)
	Takeover(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error)
	GiveBackToAI(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error)
	Clear(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error)
}

// Server implements ConversationService.
type Server struct {
	machine Machine
}

// NewServer returns a ConversationService server.
func NewServer(m Machine) *Server {
	return &Server{machine: m}
}

// ConversationServiceServer is the server API of ConversationService.
type ConversationServiceServer interface {
	GetConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Takeover(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GiveBackToAI(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Clear(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes ConversationService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "GetConversation", func(s ConversationServiceServer) rpc.Method { return s.GetConversation }),
		rpc.Unary(ServiceName, "ListMessages", func(s ConversationServiceServer) rpc.Method { return s.ListMessages }),
		rpc.Unary(ServiceName, "Takeover", func(s ConversationServiceServer) rpc.Method { return s.Takeover }),
		rpc.Unary(ServiceName, "GiveBackToAI", func(s ConversationServiceServer) rpc.Method { return s.GiveBackToAI }),
		rpc.Unary(ServiceName, "Clear", func(s ConversationServiceServer) rpc.Method { return s.Clear }),
	},
	Metadata: "chatdesk/conversation/v1/conversation.proto",
}

type transition func(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error)

func (s *Server) call(ctx context.Context, in *structpb.Struct, fn transition) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := rpc.Required(in, "conversation_id")
	if err != nil {
		return nil, err
	}
	c, err := fn(ctx, gctx, id)
	if err != nil {
		return nil, err
	}
	return conversationToStruct(c)
}

// GetConversation returns one conversation of the caller's business.
func (s *Server) GetConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, in, s.machine.Get)
}

// Takeover assigns the conversation to the caller.
func (s *Server) Takeover(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, in, s.machine.Takeover)
}

// GiveBackToAI returns the conversation to the AI.
func (s *Server) GiveBackToAI(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, in, s.machine.GiveBackToAI)
}

// Clear wipes the conversation history and resets it to AI.
func (s *Server) Clear(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, in, s.machine.Clear)
}

// ListMessages returns the messages of a conversation, oldest first.
func (s *Server) ListMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := rpc.Required(in, "conversation_id")
	if err != nil {
		return nil, err
	}
	msgs, err := s.machine.ListMessages(ctx, gctx, id, rpc.Int(in, "limit", 0))
	if err != nil {
		return nil, err
	}
	list := make([]interface{}, len(msgs))
	for i, m := range msgs {
		list[i] = map[string]interface{}{
			"id":          m.ID,
			"sender_type": string(m.SenderType),
			"sender_id":   m.SenderID,
			"content":     m.Content,
			"created_at":  rpc.Time(&m.CreatedAt),
		}
	}
	return rpc.Out(map[string]interface{}{"messages": list})
}

func conversationToStruct(c *domain.Conversation) (*structpb.Struct, error) {
	out := map[string]interface{}{
		"id":                   c.ID,
		"business_id":          c.BusinessID,
		"customer_ref":         c.CustomerRef,
		"mode":                 string(c.Mode),
		"assigned_employee_id": c.AssignedEmployeeID,
		"assigned_at":          rpc.Time(c.AssignedAt),
		"version":              float64(c.Version),
		"updated_at":           rpc.Time(&c.UpdatedAt),
	}
	if len(c.AIContext) > 0 {
		var aiContext map[string]interface{}
		if err := json.Unmarshal(c.AIContext, &aiContext); err == nil {
			out["ai_context"] = aiContext
		}
	}
	return rpc.Out(out)
}
