// seed inserts development sample data: one business with an owner and an agent, and one
// conversation with a short history. Idempotent: skips everything if the owner already exists.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	businessdomain "chatdesk/backend/internal/business/domain"
	businessrepo "chatdesk/backend/internal/business/repository"
	"chatdesk/backend/internal/config"
	conversationdomain "chatdesk/backend/internal/conversation/domain"
	conversationrepo "chatdesk/backend/internal/conversation/repository"
	"chatdesk/backend/internal/db"
	employeedomain "chatdesk/backend/internal/employee/domain"
	employeerepo "chatdesk/backend/internal/employee/repository"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/logging"
	roledomain "chatdesk/backend/internal/role/domain"
	rolerepo "chatdesk/backend/internal/role/repository"
	"chatdesk/backend/internal/security"
)

const (
	devBusinessID     = "dev-business-001"
	devOwnerRoleID    = "dev-role-owner"
	devAgentRoleID    = "dev-role-agent"
	devOwnerID        = "dev-employee-001"
	devAgentID        = "dev-employee-002"
	devConversationID = "dev-conversation-001"
	devOwnerEmail     = "owner@example.com"
	devAgentEmail     = "agent@example.com"
	devPassword       = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Configure(cfg.LogLevel, "console", "chatdesk-seed")
	ctx := context.Background()

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer sqlDB.Close()

	businesses := businessrepo.NewPostgresRepository(sqlDB)
	roles := rolerepo.NewPostgresRepository(sqlDB)
	employees := employeerepo.NewPostgresRepository(sqlDB)
	conversations := conversationrepo.NewPostgresRepository(sqlDB)

	existing, err := employees.GetByID(ctx, devOwnerID)
	if err != nil {
		log.Fatal().Err(err).Msg("seed check")
	}
	if existing != nil {
		log.Info().Msg("seed already applied; skipping")
		return
	}

	passwordHash, err := security.NewHasher(cfg.BcryptCost).Hash(devPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}
	now := time.Now().UTC()

	if err := businesses.Create(ctx, &businessdomain.Business{
		ID:                 devBusinessID,
		Name:               "Acme Dev",
		SubscriptionStatus: "active",
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		log.Fatal().Err(err).Msg("create business")
	}

	for _, r := range []*roledomain.Role{
		{ID: devOwnerRoleID, BusinessID: devBusinessID, Name: "Owner", Grants: permission.AllGrants(), CreatedAt: now},
		{ID: devAgentRoleID, BusinessID: devBusinessID, Name: "Agent", Grants: []permission.Grant{
			permission.ConversationsRead, permission.ConversationsTakeover, permission.MessagesRead,
		}, CreatedAt: now},
	} {
		if err := roles.Create(ctx, r); err != nil {
			log.Fatal().Err(err).Str("role", r.Name).Msg("create role")
		}
	}

	for _, e := range []*employeedomain.Employee{
		{ID: devOwnerID, BusinessID: devBusinessID, RoleID: devOwnerRoleID, Email: devOwnerEmail, Name: "Dev Owner"},
		{ID: devAgentID, BusinessID: devBusinessID, RoleID: devAgentRoleID, Email: devAgentEmail, Name: "Dev Agent"},
	} {
		e.PasswordHash = passwordHash
		e.EmailVerified = true
		e.CreatedAt = now
		if err := employees.Create(ctx, e); err != nil {
			log.Fatal().Err(err).Str("employee", e.Email).Msg("create employee")
		}
	}

	if err := conversations.Create(ctx, &conversationdomain.Conversation{
		ID:          devConversationID,
		BusinessID:  devBusinessID,
		CustomerRef: "whatsapp:+15550100",
		Mode:        conversationdomain.ModeAI,
		AIContext:   []byte(`{"topic":"order status"}`),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		log.Fatal().Err(err).Msg("create conversation")
	}
	for i, m := range []struct {
		sender  conversationdomain.SenderType
		content string
	}{
		{conversationdomain.SenderCustomer, "Hi, where is my order #1042?"},
		{conversationdomain.SenderAgent, "It shipped yesterday and should arrive tomorrow."},
	} {
		if err := conversations.AppendMessage(ctx, &conversationdomain.Message{
			ID:             fmt.Sprintf("dev-message-%03d", i+1),
			ConversationID: devConversationID,
			BusinessID:     devBusinessID,
			SenderType:     m.sender,
			Content:        m.content,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			log.Fatal().Err(err).Msg("append message")
		}
	}

	log.Info().Msg("seed completed")
	fmt.Printf("Business: %s\n", devBusinessID)
	fmt.Printf("Owner login: %s / %s\n", devOwnerEmail, devPassword)
	fmt.Printf("Agent login: %s / %s\n", devAgentEmail, devPassword)
}
