package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/api"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/login"
	"github.com/averly/authcore/pkg/loginflow"
	"github.com/averly/authcore/pkg/notification"
	"github.com/averly/authcore/pkg/ratelimit"
	"github.com/averly/authcore/pkg/tokengenerator"
	"github.com/averly/authcore/pkg/twofa"
)

type ServerConfig struct {
	Host string `env:"AUTHD_HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"AUTHD_PORT" env-default:"4000"`
}

type DbConfig struct {
	Enabled  bool   `env:"AUTHD_PG_ENABLED" env-default:"false"`
	Host     string `env:"AUTHD_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AUTHD_PG_PORT" env-default:"5432"`
	Database string `env:"AUTHD_PG_DATABASE" env-default:"authcore_db"`
	User     string `env:"AUTHD_PG_USER" env-default:"authcore"`
	Password string `env:"AUTHD_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"AUTHD_PG_SCHEMA" env-default:"public"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

type RedisConfig struct {
	Enabled  bool   `env:"AUTHD_REDIS_ENABLED" env-default:"false"`
	Addr     string `env:"AUTHD_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"AUTHD_REDIS_PASSWORD" env-default:""`
	DB       int    `env:"AUTHD_REDIS_DB" env-default:"0"`
}

type JwtConfig struct {
	Secret          string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer          string        `env:"JWT_ISSUER" env-default:"authcore"`
	Audience        string        `env:"JWT_AUDIENCE" env-default:"authcore-api"`
	SessionExpiry   time.Duration `env:"SESSION_TOKEN_EXPIRY" env-default:"1h"`
	ChallengeExpiry time.Duration `env:"CHALLENGE_TOKEN_EXPIRY" env-default:"10m"`
	CookieSecure    bool          `env:"COOKIE_SECURE" env-default:"true"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

type LoginConfig struct {
	MaxFailedAttempts    int           `env:"LOGIN_MAX_FAILED_ATTEMPTS" env-default:"5"`
	LockoutDuration      time.Duration `env:"LOGIN_LOCKOUT_DURATION" env-default:"15m"`
	ResetTokenExpiration time.Duration `env:"RESET_TOKEN_EXPIRATION" env-default:"24h"`
	ResetRequestLimit    int           `env:"RESET_REQUEST_LIMIT" env-default:"3"`
	ResetRequestWindow   time.Duration `env:"RESET_REQUEST_WINDOW" env-default:"1h"`
}

type TwoFaConfig struct {
	TOTPIssuer      string        `env:"TOTP_ISSUER" env-default:"authcore"`
	OTPCodeExpiry   time.Duration `env:"OTP_CODE_EXPIRY" env-default:"10m"`
	OTPMaxAttempts  int           `env:"OTP_MAX_ATTEMPTS" env-default:"5"`
	OTPLockDuration time.Duration `env:"OTP_LOCK_DURATION" env-default:"15m"`
}

type RateLimitConfig struct {
	GlobalCapacity int  `env:"RATE_LIMIT_GLOBAL_CAPACITY" env-default:"1000"`
	PerIPCapacity  int  `env:"RATE_LIMIT_PER_IP_CAPACITY" env-default:"100"`
	Enabled        bool `env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

type Config struct {
	ServerConfig    ServerConfig
	DbConfig        DbConfig
	RedisConfig     RedisConfig
	JwtConfig       JwtConfig
	EmailConfig     EmailConfig
	SMSConfig       notification.SMSGatewayConfig
	LoginConfig     LoginConfig
	TwoFaConfig     TwoFaConfig
	RateLimitConfig RateLimitConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	config := Config{}
	cleanenv.ReadEnv(&config)

	ctx := context.Background()

	// Storage
	var (
		accountRepository    accounts.AccountRepository
		resetTokenRepository login.ResetTokenRepository
		methodRepository     twofa.MethodRepository
		auditLogger          audit.Logger
	)
	if config.DbConfig.Enabled {
		pool, err := pgxpool.New(ctx, config.DbConfig.toDatabaseURL())
		if err != nil {
			slog.Error("Failed creating database pool", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		accountRepository = accounts.NewPostgresAccountRepository(pool)
		resetTokenRepository = login.NewPostgresResetTokenRepository(pool)
		methodRepository = twofa.NewPostgresMethodRepository(pool)
		auditLogger = audit.NewPostgresLogger(pool)
	} else {
		slog.Warn("Running with in-memory storage; data is lost on restart")
		accountRepository = accounts.NewInMemoryAccountRepository()
		resetTokenRepository = login.NewInMemoryResetTokenRepository()
		methodRepository = twofa.NewInMemoryMethodRepository()
		auditLogger = audit.NewInMemoryLogger()
	}

	var otpStore twofa.OTPStore
	if config.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisConfig.Addr,
			Password: config.RedisConfig.Password,
			DB:       config.RedisConfig.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("Failed connecting to redis", "err", err)
			os.Exit(1)
		}
		otpStore = twofa.NewRedisOTPStore(client)
	} else {
		otpStore = twofa.NewInMemoryOTPStore()
	}

	// Notifications
	nmOptions := []notification.NotificationManagerOption{
		notification.WithDefaultTemplates(),
		notification.WithSMTP(notification.SMTPConfig{
			Host:     config.EmailConfig.Host,
			Port:     config.EmailConfig.Port,
			TLS:      config.EmailConfig.TLS,
			Username: config.EmailConfig.Username,
			Password: config.EmailConfig.Password,
			From:     config.EmailConfig.From,
		}),
	}
	if config.SMSConfig.GatewayURL != "" {
		nmOptions = append(nmOptions, notification.WithSMSGateway(config.SMSConfig))
	}
	notificationManager, err := notification.NewNotificationManagerWithOptions(nmOptions...)
	if err != nil {
		slog.Error("Failed creating notification manager", "err", err)
		os.Exit(1)
	}

	// Services
	loginConfig := login.DefaultConfig()
	loginConfig.MaxFailedAttempts = config.LoginConfig.MaxFailedAttempts
	loginConfig.LockoutDuration = config.LoginConfig.LockoutDuration
	loginConfig.ResetTokenExpiration = config.LoginConfig.ResetTokenExpiration
	loginConfig.ResetRequestLimit = config.LoginConfig.ResetRequestLimit
	loginConfig.ResetRequestWindow = config.LoginConfig.ResetRequestWindow
	if err := loginConfig.Validate(); err != nil {
		slog.Error("Invalid login configuration", "err", err)
		os.Exit(1)
	}

	loginService := login.NewLoginService(accountRepository, auditLogger, login.WithConfig(loginConfig))
	passwordManager := login.NewPasswordManager(accountRepository, loginService.Hasher(), loginConfig.PasswordPolicy, auditLogger,
		login.WithPasswordNotifications(notificationManager))
	resetTokenService := login.NewResetTokenService(resetTokenRepository, accountRepository, auditLogger, notificationManager, loginConfig)

	twoFaConfig := twofa.DefaultConfig()
	twoFaConfig.TOTPIssuer = config.TwoFaConfig.TOTPIssuer
	twoFaConfig.OTPCodeExpiry = config.TwoFaConfig.OTPCodeExpiry
	twoFaConfig.OTPMaxAttempts = config.TwoFaConfig.OTPMaxAttempts
	twoFaConfig.OTPLockDuration = config.TwoFaConfig.OTPLockDuration
	twoFaService := twofa.NewTwoFaService(methodRepository, otpStore, accountRepository, notificationManager, auditLogger,
		twofa.WithConfig(twoFaConfig))

	tokenService := tokengenerator.NewSessionTokenService(
		tokengenerator.NewJwtTokenGenerator(config.JwtConfig.Secret, config.JwtConfig.Issuer, config.JwtConfig.Audience),
		tokengenerator.WithSessionExpiry(config.JwtConfig.SessionExpiry),
		tokengenerator.WithChallengeExpiry(config.JwtConfig.ChallengeExpiry),
	)

	flow := loginflow.NewLoginFlowService(&loginflow.ServiceDependencies{
		LoginService:    loginService,
		PasswordManager: passwordManager,
		ResetTokens:     resetTokenService,
		TwoFaService:    twoFaService,
		TokenService:    tokenService,
		Accounts:        accountRepository,
		AuditLogger:     auditLogger,
	})

	// HTTP
	var rateLimiter *ratelimit.Middleware
	if config.RateLimitConfig.Enabled {
		rlConfig := ratelimit.DefaultConfig()
		rlConfig.GlobalCapacity = config.RateLimitConfig.GlobalCapacity
		rlConfig.PerIPCapacity = config.RateLimitConfig.PerIPCapacity
		rlConfig.EndpointLimits = api.DefaultEndpointLimits()
		rateLimiter = ratelimit.NewMiddleware(rlConfig)
	}

	router := chi.NewRouter()
	api.SetupRoutes(router, api.RouterConfig{
		Handle: api.NewHandle(flow, twoFaService, passwordManager,
			tokengenerator.NewDefaultCookieSetter(config.JwtConfig.CookieSecure)),
		JWTAuth:   api.NewJWTAuth(config.JwtConfig.Secret),
		RateLimit: rateLimiter,
	})

	addr := fmt.Sprintf("%s:%d", config.ServerConfig.Host, config.ServerConfig.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down cleanly", "err", err)
	}
}

func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "err", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "err", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}
