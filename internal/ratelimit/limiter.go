// Package ratelimit throttles password login attempts per account and per
// client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	MaxFailures  int           // Failed logins per email before lockout (default: 5)
	Lockout      time.Duration // Lockout duration once MaxFailures is reached (default: 5m)
	MaxIPPerHour int           // Login attempts per IP per hour (default: 30)
	CleanupEvery time.Duration // Sweep interval for expired entries (default: 5m)

	// Clock for testing (nil uses real time)
	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		MaxFailures:  5,
		Lockout:      5 * time.Minute,
		MaxIPPerHour: 30,
		CleanupEvery: 5 * time.Minute,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

type entry struct {
	count    int
	firstAt  time.Time
	lastAt   time.Time
	lockedAt time.Time // zero if not locked
}

type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	// Keyed by hash of email or IP
	failuresByEmail map[string]*entry
	attemptsByIP    map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = defaults.Lockout
	}
	if cfg.MaxIPPerHour <= 0 {
		cfg.MaxIPPerHour = defaults.MaxIPPerHour
	}
	if cfg.CleanupEvery <= 0 {
		cfg.CleanupEvery = defaults.CleanupEvery
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:          cfg,
		clock:           clock,
		failuresByEmail: make(map[string]*entry),
		attemptsByIP:    make(map[string]*entry),
		cleanupCtx:      ctx,
		cleanupCancel:   cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckLogin reports whether a login attempt may proceed. It does not
// record anything; call RecordAttempt and then RecordFailure or Reset.
func (l *Limiter) CheckLogin(email, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	emailKey := hashKey("login:email:", normalizeIdentifier(email))
	ipKey := hashKey("login:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.failuresByEmail[emailKey]; e != nil && !e.lockedAt.IsZero() {
		elapsed := now.Sub(e.lockedAt)
		if elapsed < l.config.Lockout {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.Lockout - elapsed,
				Reason:     "lockout",
			}
		}
	}

	if e := l.attemptsByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.MaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordAttempt counts one login attempt against the client IP.
func (l *Limiter) RecordAttempt(ip string) {
	now := l.clock.Now()
	ipKey := hashKey("login:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.attemptsByIP[ipKey]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		l.attemptsByIP[ipKey] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

// RecordFailure counts a failed password check for email. It returns true
// when this failure started a lockout.
func (l *Limiter) RecordFailure(email string) (lockedOut bool) {
	now := l.clock.Now()
	emailKey := hashKey("login:email:", normalizeIdentifier(email))

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.failuresByEmail[emailKey]
	if e == nil || (!e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.Lockout) {
		e = &entry{firstAt: now}
		l.failuresByEmail[emailKey] = e
	}
	e.count++
	e.lastAt = now
	if e.count >= l.config.MaxFailures && e.lockedAt.IsZero() {
		e.lockedAt = now
		lockedOut = true
	}
	return lockedOut
}

// Reset clears the failure counter after a successful login.
func (l *Limiter) Reset(email string) {
	emailKey := hashKey("login:email:", normalizeIdentifier(email))
	l.mu.Lock()
	delete(l.failuresByEmail, emailKey)
	l.mu.Unlock()
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(l.config.CleanupEvery)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	maxAge := l.config.Lockout + time.Hour
	for k, e := range l.failuresByEmail {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.failuresByEmail, k)
		}
	}
	for k, e := range l.attemptsByIP {
		if now.Sub(e.firstAt) > time.Hour {
			delete(l.attemptsByIP, k)
		}
	}
}

// SanitizeIdentifier masks an email for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeIdentifier(identifier)
	if local, domain, ok := strings.Cut(identifier, "@"); ok {
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(identifier, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Login rate limit exceeded")
}
