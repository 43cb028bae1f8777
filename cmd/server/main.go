package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"

	"chatdesk/backend/internal/audit"
	auditrepo "chatdesk/backend/internal/audit/repository"
	businessrepo "chatdesk/backend/internal/business/repository"
	businessservice "chatdesk/backend/internal/business/service"
	"chatdesk/backend/internal/config"
	"chatdesk/backend/internal/conversation/handoff"
	conversationrepo "chatdesk/backend/internal/conversation/repository"
	"chatdesk/backend/internal/db"
	employeerepo "chatdesk/backend/internal/employee/repository"
	employeeservice "chatdesk/backend/internal/employee/service"
	"chatdesk/backend/internal/encryption"
	"chatdesk/backend/internal/events"
	"chatdesk/backend/internal/events/producer"
	"chatdesk/backend/internal/guard"
	healthhandler "chatdesk/backend/internal/health/handler"
	identityservice "chatdesk/backend/internal/identity/service"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/logging"
	rolerepo "chatdesk/backend/internal/role/repository"
	"chatdesk/backend/internal/security"
	"chatdesk/backend/internal/server"
	"chatdesk/backend/internal/server/interceptors"
	sessionrepo "chatdesk/backend/internal/session/repository"
	sessionservice "chatdesk/backend/internal/session/service"
	telemetryotel "chatdesk/backend/internal/telemetry/otel"
)

const healthInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	secrets, err := cfg.Secrets()
	if err != nil {
		log.Fatal().Err(err).Msg("config: key material")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("otel")
	}
	providers.SetGlobal()

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer sqlDB.Close()

	privateKey, publicKey, err := security.LoadKeyPair(secrets.SessionPrivateKey, secrets.SessionPublicKey)
	if err != nil {
		log.Fatal().Err(err).Msg("session signing keys")
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.SessionIssuer, cfg.SessionAudience)
	enc, err := encryption.New(secrets.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("encryption")
	}

	var (
		evaluator     permission.Evaluator = permission.NewStaticEvaluator()
		policyChecker healthhandler.PolicyChecker
	)
	if cfg.PolicyEngine == "rego" {
		rego, err := permission.NewRegoEvaluator(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("permission: rego")
		}
		evaluator, policyChecker = rego, rego
	}

	publishers := events.Multi{telemetryotel.NewEventLog(providers.LoggerProvider)}
	kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic)
	if kafka != nil {
		publishers = append(publishers, kafka)
		log.Info().Str("topic", cfg.EventsKafkaTopic).Msg("events: publishing to kafka")
	}

	timeout := cfg.StorageTimeout()
	auditRepo := auditrepo.NewPostgresRepository(sqlDB)
	auditLogger := audit.NewLogger(auditRepo, interceptors.ClientIP)
	employees := employeerepo.NewPostgresRepository(sqlDB)
	businesses := businessrepo.NewPostgresRepository(sqlDB)
	sessions := sessionservice.NewStore(sessionrepo.NewPostgresRepository(sqlDB), tokens, cfg.SessionTTL(),
		sessionservice.WithTimeout(timeout),
		sessionservice.WithAuditLogger(auditLogger),
	)
	g := guard.New(sessions, employees, businesses, rolerepo.NewPostgresRepository(sqlDB), evaluator, timeout)

	hs := health.NewServer()
	s := server.NewGRPCServer(server.Deps{
		Guard:      g,
		Authorizer: g,
		Sessions:   sessions,
		Auth: identityservice.NewAuthService(employees, sessions,
			security.NewHasher(cfg.BcryptCost), auditLogger, timeout),
		Conversations: handoff.New(conversationrepo.NewPostgresRepository(sqlDB), g,
			handoff.WithTimeout(timeout),
			handoff.WithPublisher(publishers),
		),
		Employees: employeeservice.New(employees, g,
			employeeservice.WithTimeout(timeout),
			employeeservice.WithPublisher(publishers),
			employeeservice.WithAuditLogger(auditLogger),
		),
		Credentials: businessservice.NewCredentials(businesses, enc, g,
			businessservice.WithTimeout(timeout),
			businessservice.WithAuditLogger(auditLogger),
		),
		AuditRepo:   auditRepo,
		AuditLogger: auditLogger,
		Health:      hs,
		Logger:      log.Logger,
	})
	go healthhandler.NewChecker(sqlDB, policyChecker).Run(ctx, hs, healthInterval, server.ServiceNames()...)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Str("policy_engine", cfg.PolicyEngine).Msg("gRPC server listening")
		if err := s.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gRPC server")
	hs.Shutdown()
	s.GracefulStop()

	// Asynchronous publishes started by the last requests may still be running.
	time.Sleep(events.ShutdownDrainDuration)
	if err := kafka.Close(); err != nil {
		log.Warn().Err(err).Msg("events: close kafka producer")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel: shutdown")
	}
	log.Info().Msg("gRPC server stopped")
}
