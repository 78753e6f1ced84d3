// Command devicetoken issues and revokes device bearer tokens for the policy
// store HTTP API.
//
//	devicetoken issue --device dev-1 --ttl 720h
//	devicetoken revoke --jti <token id> --ttl 720h
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	jwttoken "frost/internal/jwt_token"
	"frost/internal/platform/config"
	"frost/internal/platform/redis"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "devicetoken: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: devicetoken issue|revoke [flags]")
	}
	fs := pflag.NewFlagSet("devicetoken "+args[0], pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML config file")
	deviceID := fs.String("device", "", "device id the token is issued for")
	jti := fs.String("jti", "", "token id to revoke")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime, or how long a revocation is kept")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	switch args[0] {
	case "issue":
		if cfg.Server.Auth.JWTSigningKey == "" {
			return errors.New("JWT_SIGNING_KEY is required")
		}
		if *deviceID == "" {
			return errors.New("--device is required")
		}
		issued, err := jwttoken.New(cfg.Server.Auth).Issue(*deviceID, *ttl)
		if err != nil {
			return err
		}
		fmt.Println(issued.Token)
		fmt.Fprintf(os.Stderr, "jti=%s expires=%s\n", issued.JTI, issued.ExpiresAt.Format(time.RFC3339))
		return nil
	case "revoke":
		if *jti == "" {
			return errors.New("--jti is required")
		}
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		if rc == nil {
			return errors.New("REDIS_URL is required to revoke tokens")
		}
		defer rc.Close()
		return jwttoken.NewRedisRevocations(rc.Client).Revoke(ctx, *jti, *ttl)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig reads the server configuration without requiring the ledger
// seed, which token handling never needs.
func loadConfig(path string) (*config.Config, error) {
	var args []string
	if path != "" {
		args = append(args, "--config", path)
	}
	return config.Load(args, func(key string) (string, bool) {
		if key == "SEED" {
			if v, ok := os.LookupEnv(key); ok && v != "" {
				return v, true
			}
			return "unused", true
		}
		return os.LookupEnv(key)
	})
}
