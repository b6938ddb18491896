package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/ptfoundation/pandham-backend/pkg/config"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	redispkg "github.com/ptfoundation/pandham-backend/pkg/redis"
	"github.com/ptfoundation/pandham-backend/pkg/security"
	"github.com/ptfoundation/pandham-backend/pkg/sms"
)

// Service issues and verifies the one-time codes that gate the public
// contribution and request forms.
type Service interface {
	Send(ctx context.Context, phone, clientIP string) error
	Verify(ctx context.Context, phone, code string) error
}

type service struct {
	redis  *redispkg.Client
	sender sms.Sender
	cfg    config.OTPConfig
	logg   *logger.Logger
}

// NewService wires the OTP gate. The logger is optional.
func NewService(redis *redispkg.Client, sender sms.Sender, cfg config.OTPConfig, logg *logger.Logger) (Service, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	return &service{redis: redis, sender: sender, cfg: cfg, logg: logg}, nil
}

// Send generates a fresh code for the phone number and dispatches it by SMS.
// Resending replaces the previous code.
func (s *service) Send(ctx context.Context, phone, clientIP string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}

	allowed, _, err := s.redis.FixedWindowAllow(ctx, "otp_send:"+phone, int64(s.cfg.SendLimit), s.cfg.SendWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check failed")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many codes requested for this phone number")
	}

	if clientIP != "" {
		allowed, _, err := s.redis.FixedWindowAllow(ctx, "otp_send_ip:"+clientIP, int64(s.cfg.SendIPLimit), s.cfg.SendIPWindow)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check failed")
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeRateLimit, "too many codes requested from this address")
		}
	}

	code, err := security.GenerateOTPCode(s.cfg.CodeLength)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.redis.OTPKey(phone), code, s.cfg.TTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing otp code")
	}

	message := fmt.Sprintf("Your Pandham verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.TTL.Minutes()))
	if err := s.sender.Send(ctx, phone, message); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending otp sms")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"phone": phone})
		s.logg.Info(logCtx, "otp code sent")
	}
	return nil
}

// Verify checks the submitted code against the stored one. The code is single
// use: a successful verification deletes it.
func (s *service) Verify(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number and code are required")
	}

	allowed, _, err := s.redis.FixedWindowAllow(ctx, "otp_verify:"+phone, int64(s.cfg.VerifyLimit), s.cfg.VerifyWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check failed")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification attempts")
	}

	key := s.redis.OTPKey(phone)
	stored, err := s.redis.Get(ctx, key)
	if err != nil {
		if err == redispkg.Nil {
			return pkgerrors.New(pkgerrors.CodeOTPInvalid, "code invalid or expired")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading otp code")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return pkgerrors.New(pkgerrors.CodeOTPInvalid, "code invalid or expired")
	}

	if err := s.redis.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consuming otp code")
	}
	return nil
}
