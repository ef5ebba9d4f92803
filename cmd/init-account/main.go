package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/login"
)

type DbConfig struct {
	Host     string `env:"AUTHD_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AUTHD_PG_PORT" env-default:"5432"`
	Database string `env:"AUTHD_PG_DATABASE" env-default:"authcore_db"`
	User     string `env:"AUTHD_PG_USER" env-default:"authcore"`
	Password string `env:"AUTHD_PG_PASSWORD" env-default:"pwd"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

// init-account creates an account directly in the database. Intended for
// bootstrapping a fresh deployment.
func main() {
	email := flag.String("email", "", "account email (required)")
	password := flag.String("password", "", "account password (required)")
	tenantID := flag.String("tenant", "", "tenant UUID (optional)")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	var dbConfig DbConfig
	cleanenv.ReadEnv(&dbConfig)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbConfig.toDatabaseURL())
	if err != nil {
		slog.Error("Failed creating database pool", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	policy := login.DefaultConfig().PasswordPolicy
	if err := policy.CheckPasswordComplexity(*password); err != nil {
		slog.Error("Password rejected", "err", err)
		os.Exit(1)
	}

	hash, err := login.NewBcryptHasher().Hash(*password)
	if err != nil {
		slog.Error("Failed hashing password", "err", err)
		os.Exit(1)
	}

	account := accounts.Account{
		Email:        *email,
		PasswordHash: hash,
		Active:       true,
	}
	if *tenantID != "" {
		id, err := uuid.Parse(*tenantID)
		if err != nil {
			slog.Error("Invalid tenant UUID", "err", err)
			os.Exit(1)
		}
		account.TenantID = id
	}

	created, err := accounts.NewPostgresAccountRepository(pool).Create(ctx, account)
	if err != nil {
		slog.Error("Failed creating account", "err", err)
		os.Exit(1)
	}
	slog.Info("Account created", "id", created.ID, "email", created.Email)
}
