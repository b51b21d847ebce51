package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/config"
	"github.com/beampay-service/beampay_service/pkg/auth"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// BalanceAuditor compares node custody against the ledger's aggregate sums.
type BalanceAuditor interface {
	Run(ctx context.Context) (*entities.AuditReport, error)
}

// WithdrawalQueueAdmin is the queue surface for operator intervention.
type WithdrawalQueueAdmin interface {
	GetByID(ctx context.Context, id string) (*entities.PendingWithdrawal, error)
	ListByStatus(ctx context.Context, status entities.WithdrawalStatus, page, pageSize int) ([]*entities.PendingWithdrawal, error)
	Requeue(ctx context.Context, id string) (bool, error)
}

// DeadLetterStore lists webhook deliveries that exhausted their retries.
type DeadLetterStore interface {
	ListFailed(ctx context.Context) ([]*entities.FailedWebhook, error)
}

// AdminSession is an issued dashboard token.
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminService backs the operator dashboard: login, custody balance checks
// and recovery of parked withdrawals.
type AdminService struct {
	config      config.AdminConfig
	auditor     BalanceAuditor
	withdrawals WithdrawalQueueAdmin
	deadLetters DeadLetterStore
	logger      *logger.Logger
}

// NewAdminService creates an admin service
func NewAdminService(
	cfg config.AdminConfig,
	auditor BalanceAuditor,
	withdrawals WithdrawalQueueAdmin,
	deadLetters DeadLetterStore,
	log *logger.Logger,
) *AdminService {
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 3600
	}
	return &AdminService{
		config:      cfg,
		auditor:     auditor,
		withdrawals: withdrawals,
		deadLetters: deadLetters,
		logger:      log,
	}
}

// Login checks the operator credentials and issues a dashboard token. When a
// TOTP secret is configured the one-time code becomes mandatory.
func (s *AdminService) Login(ctx context.Context, username, password, totpCode string) (*AdminSession, error) {
	if s.config.Password == "" {
		s.logger.Warn("Admin login attempted but no admin password is configured")
		return nil, entities.ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.config.Password)) == 1
	if !userOK || !passOK {
		s.logger.Warn("Admin login rejected", "username", username)
		return nil, entities.ErrInvalidCredentials
	}

	if s.config.TOTPSecret != "" && !totp.Validate(totpCode, s.config.TOTPSecret) {
		s.logger.Warn("Admin login rejected by totp", "username", username)
		return nil, entities.ErrInvalidCredentials
	}

	ttl := time.Duration(s.config.JWTTTL) * time.Second
	token, expiresAt, err := auth.GenerateToken(username, "admin", s.config.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("issue admin token: %w", err)
	}

	s.logger.Info("Admin logged in", "username", username)
	return &AdminSession{Token: token, ExpiresAt: expiresAt}, nil
}

// Balances runs a fresh node versus ledger comparison.
func (s *AdminService) Balances(ctx context.Context) (*entities.AuditReport, error) {
	return s.auditor.Run(ctx)
}

// Withdrawals lists queue rows by status, defaulting to the parked ones that
// need operator attention.
func (s *AdminService) Withdrawals(ctx context.Context, status string, page, pageSize int) ([]*entities.PendingWithdrawal, error) {
	withdrawalStatus := entities.WithdrawalStatusAdminCheck
	if status != "" {
		withdrawalStatus = entities.WithdrawalStatus(status)
		if err := withdrawalStatus.Validate(); err != nil {
			return nil, entities.NewValidationError("status", err.Error())
		}
	}
	return s.withdrawals.ListByStatus(ctx, withdrawalStatus, page, pageSize)
}

// RequeueWithdrawal returns a parked withdrawal to the pending queue after a
// human resolved the underlying mismatch.
func (s *AdminService) RequeueWithdrawal(ctx context.Context, id string) (*entities.PendingWithdrawal, error) {
	withdrawal, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != entities.WithdrawalStatusAdminCheck {
		return nil, entities.NewValidationError("status", "only admin_check withdrawals can be requeued")
	}

	requeued, err := s.withdrawals.Requeue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("requeue withdrawal: %w", err)
	}
	if !requeued {
		// The row changed state under us, treat it like a stale read.
		return nil, entities.NewValidationError("status", "only admin_check withdrawals can be requeued")
	}

	withdrawal.Status = entities.WithdrawalStatusPending
	s.logger.Info("Withdrawal requeued by admin", "withdrawal_id", id)
	return withdrawal, nil
}

// FailedWebhooks lists dead lettered webhook deliveries, oldest first.
func (s *AdminService) FailedWebhooks(ctx context.Context) ([]*entities.FailedWebhook, error) {
	return s.deadLetters.ListFailed(ctx)
}
