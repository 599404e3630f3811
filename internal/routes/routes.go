package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sabjab/sabjab_api/internal/auth"
	"github.com/sabjab/sabjab_api/internal/config"
	"github.com/sabjab/sabjab_api/internal/identity"
	"github.com/sabjab/sabjab_api/internal/middleware"
	"github.com/sabjab/sabjab_api/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier overrides the notifier selected from Cfg.Notifier.
	Notifier notification.Notifier
	// Repo overrides the repository selected from DB.
	Repo identity.Repository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil && d.Repo == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	repo := d.Repo
	if repo == nil {
		if d.DB != nil {
			repo = identity.NewPostgresRepository(d.DB)
		} else {
			d.Logger.Warn("no database configured, using in-memory credential store")
			repo = identity.NewMemoryRepository()
		}
	}

	notifier, err := buildNotifier(d)
	if err != nil {
		return err
	}

	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  d.Cfg.AccessTokenSecret,
		RefreshSecret: d.Cfg.RefreshTokenSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
		Issuer:        d.Cfg.AppName,
	})
	identitySvc := identity.NewService(repo, issuer, notifier, d.Logger,
		identity.WithOTPTTL(d.Cfg.OTPTTL),
		identity.WithNotifyTimeout(d.Cfg.Notifier.Timeout),
	)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterIdentityRoutes(api, IdentityRoutes{
		Handler: identity.NewHandler(identitySvc),
		Guard:   middleware.RequireAuth(issuer),
		OTPLimiter: middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
			Prefix: "otp",
			Max:    d.Cfg.OTPRequestsPerMinute,
			Key:    phoneKey,
		}, d.Logger),
		// Separate budget so requesting codes never locks out verifying one.
		VerifyLimiter: middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
			Prefix: "otp-verify",
			Max:    d.Cfg.OTPRequestsPerMinute,
			Key:    phoneKey,
		}, d.Logger),
		LoginLimiter: middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
			Prefix: "login",
			Max:    d.Cfg.LoginAttemptsPerMinute,
			Key:    emailKey,
		}, d.Logger),
		Idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	})

	return nil
}

func buildNotifier(d Deps) (notification.Notifier, error) {
	if d.Notifier != nil {
		return d.Notifier, nil
	}
	n := d.Cfg.Notifier
	if n.Host == "" {
		d.Logger.Warn("no SMTP host configured, OTPs are logged instead of mailed")
		return notification.NewLoggerNotifier(d.Logger), nil
	}
	return notification.NewSMTPNotifier(notification.SMTPConfig{
		Host:     n.Host,
		Port:     n.Port,
		Username: n.Username,
		Password: n.Password,
		From:     n.From,
		TLS:      n.TLS,
		Timeout:  n.Timeout,
	})
}

// phoneKey limits OTP requests per phone number rather than per client IP.
func phoneKey(c *fiber.Ctx) string {
	var body struct {
		Phone identity.Phone `json:"phone"`
	}
	if err := json.NewDecoder(bytes.NewReader(c.Body())).Decode(&body); err != nil || body.Phone <= 0 {
		return ""
	}
	return strconv.FormatInt(int64(body.Phone), 10)
}

// emailKey limits login attempts per account email.
func emailKey(c *fiber.Ctx) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(bytes.NewReader(c.Body())).Decode(&body); err != nil {
		return ""
	}
	return identity.NormalizeEmail(body.Email)
}
