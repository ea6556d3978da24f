package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// jsonConfig is the on-disk shape of the config file. Durations accept both
// "10m" strings and integer nanoseconds. Fields absent from the file leave
// the current Config values untouched.
type jsonConfig struct {
	HTTPAddr             string          `json:"http_addr"`
	DatabaseDSN          string          `json:"database_dsn"`
	SecretKey            string          `json:"secret_key"`
	SessionTokenTTL      *timex.Duration `json:"session_token_ttl"`
	RefreshTokenTTL      *timex.Duration `json:"refresh_token_ttl"`
	VerificationTokenTTL *timex.Duration `json:"verification_token_ttl"`
	EmailVerification    *bool           `json:"email_verification"`
	OTPMin               *int64          `json:"otp_min"`
	OTPSpan              *int64          `json:"otp_span"`
	GatewayTimeout       *timex.Duration `json:"gateway_timeout"`
	MongoURI             string          `json:"mongo_uri"`
	MongoDatabase        string          `json:"mongo_database"`
	RedisAddr            string          `json:"redis_addr"`
	MailProvider         string          `json:"mail_provider"`
	PostmarkToken        string          `json:"postmark_token"`
	MailFrom             string          `json:"mail_from"`
	TemplateSource       string          `json:"template_source"`
	TemplatePath         string          `json:"template_path"`
	S3RootUser           string          `json:"s3_root_user"`
	S3RootPassword       string          `json:"s3_root_password"`
	S3Bucket             string          `json:"s3_bucket"`
	S3Region             string          `json:"s3_region"`
	S3BaseEndpoint       string          `json:"s3_base_endpoint"`
	AdminEmails          []string        `json:"admin_emails"`
	LogLevel             string          `json:"log_level"`
	LogFormat            string          `json:"log_format"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJSON loads the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}

	setString(&cfg.HTTPAddr, c.HTTPAddr)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	if c.SessionTokenTTL != nil {
		cfg.SessionTokenTTL = c.SessionTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		cfg.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.VerificationTokenTTL != nil {
		cfg.VerificationTokenTTL = c.VerificationTokenTTL.Duration
	}
	if c.EmailVerification != nil {
		cfg.EmailVerification = *c.EmailVerification
	}
	if c.OTPMin != nil {
		cfg.OTPMin = *c.OTPMin
	}
	if c.OTPSpan != nil {
		cfg.OTPSpan = *c.OTPSpan
	}
	if c.GatewayTimeout != nil {
		cfg.GatewayTimeout = c.GatewayTimeout.Duration
	}
	setString(&cfg.MongoURI, c.MongoURI)
	setString(&cfg.MongoDatabase, c.MongoDatabase)
	setString(&cfg.RedisAddr, c.RedisAddr)
	setString(&cfg.MailProvider, c.MailProvider)
	setString(&cfg.PostmarkToken, c.PostmarkToken)
	setString(&cfg.MailFrom, c.MailFrom)
	setString(&cfg.TemplateSource, c.TemplateSource)
	setString(&cfg.TemplatePath, c.TemplatePath)
	setString(&cfg.S3RootUser, c.S3RootUser)
	setString(&cfg.S3RootPassword, c.S3RootPassword)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.AdminEmails != nil {
		cfg.AdminEmails = c.AdminEmails
	}
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.LogFormat, c.LogFormat)
	return nil
}
