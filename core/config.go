package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		Build                     string
		WorkDir                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		ApprovalNotifyEmail       mail.Address
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		Evaluation EvaluationConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// RedisConfig is optional; an empty Addr disables the question cache.
	RedisConfig struct {
		Addr        string
		Password    string
		DB          int
		QuestionTTL time.Duration
	}

	EvaluationConfig struct {
		Timezone        string
		DayStart        string // HH:MM
		DayEnd          string // HH:MM
		PassingScore    float64
		MaxAttempts     int
		RetryCooldown   time.Duration
		QuestionCount   int
		Recertification string
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig loads the app configuration from the environment, after reading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Portal")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "k3c!m2v$wq8=xj@p0(zt#h5y^n7&b1(r)dl6+9fs*ga4eo")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "Portal <noreply@localhost>")
	conf.SetDefault("approvalNotifyEmail", "Human Resources <rh@localhost>")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("passwordResetTimeoutDelta", 15*time.Minute)

	conf.SetDefault("server.host", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 10*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 24*time.Hour)
	conf.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "portal")
	conf.SetDefault("database.user", "portal")
	conf.SetDefault("database.password", "portal")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.addr", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)
	conf.SetDefault("redis.questionTTL", 10*time.Minute)

	conf.SetDefault("evaluation.timezone", "America/Merida")
	conf.SetDefault("evaluation.dayStart", "08:30")
	conf.SetDefault("evaluation.dayEnd", "18:30")
	conf.SetDefault("evaluation.passingScore", 80.0)
	conf.SetDefault("evaluation.maxAttempts", 3)
	conf.SetDefault("evaluation.retryCooldown", time.Minute)
	conf.SetDefault("evaluation.questionCount", 5)
	conf.SetDefault("evaluation.recertification", "always")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:                       env,
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		AppName:                   conf.GetString("appName"),
		Build:                     conf.GetString("build"),
		WorkDir:                   wd,
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           conf.GetString("frontendBaseURL"),
		DefaultFromEmail:          parseAddress(conf.GetString("defaultFromEmail")),
		ApprovalNotifyEmail:       parseAddress(conf.GetString("approvalNotifyEmail")),
		RollbarToken:              conf.GetString("rollbarToken"),
		SendgridApiKey:            conf.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			AllowedOrigins:            conf.GetStringSlice("server.allowedOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:        conf.GetString("redis.addr"),
			Password:    conf.GetString("redis.password"),
			DB:          conf.GetInt("redis.db"),
			QuestionTTL: conf.GetDuration("redis.questionTTL"),
		},
		Evaluation: EvaluationConfig{
			Timezone:        conf.GetString("evaluation.timezone"),
			DayStart:        conf.GetString("evaluation.dayStart"),
			DayEnd:          conf.GetString("evaluation.dayEnd"),
			PassingScore:    conf.GetFloat64("evaluation.passingScore"),
			MaxAttempts:     conf.GetInt("evaluation.maxAttempts"),
			RetryCooldown:   conf.GetDuration("evaluation.retryCooldown"),
			QuestionCount:   conf.GetInt("evaluation.questionCount"),
			Recertification: conf.GetString("evaluation.recertification"),
		},
	}
}

func parseAddress(s string) mail.Address {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		log.Fatalf("config.parseAddress(%s): %v", s, err)
	}
	return *addr
}
