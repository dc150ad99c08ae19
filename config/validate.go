package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required outside dev")

// Validate fills a dev-only signing secret and rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.Env != "dev" && c.Env != "test" {
			return ErrMissingJWTSecret
		}
		c.JWT.Secret = "healthconnect-dev-secret"
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("config: otp.length must be between 4 and 10, got %d", c.OTP.Length)
	}
	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("config: otp.maxAttempts must be positive, got %d", c.OTP.MaxAttempts)
	}
	if c.OTP.TTL <= 0 || c.Session.TTL <= 0 {
		return errors.New("config: otp.ttl and session.ttl must be positive")
	}
	if c.Booking.HorizonDays < 1 {
		return fmt.Errorf("config: booking.horizonDays must be positive, got %d", c.Booking.HorizonDays)
	}
	if c.PasswordReset.MaxResets < 1 {
		c.PasswordReset.MaxResets = 1
	}
	if c.PasswordReset.TokenTTL <= 0 {
		c.PasswordReset.TokenTTL = time.Hour
	}
	if c.RateLimit.AuthRequests < 1 {
		c.RateLimit.AuthRequests = 20
	}
	if c.RateLimit.AuthWindow <= 0 {
		c.RateLimit.AuthWindow = time.Minute
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("config: bcryptCost must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
