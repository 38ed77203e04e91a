package server

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process-level configuration. Everything tunable at runtime
// lives in the redis "app_config" blob instead; this is only what's needed to
// boot.
type Config struct {
	Port          string `envconfig:"PORT" default:"8000"`
	DbDsn         string `envconfig:"DB_DSN" required:"true"`
	BotToken      string `envconfig:"BOT_TOKEN" required:"true"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	FileLog       string `envconfig:"FILE_LOG" default:"./adwatch.log"`
	RateLimit     int64  `envconfig:"RATE_LIMIT" default:"30"` // requests per ip per second
	NotifyWorkers int    `envconfig:"NOTIFY_WORKERS" default:"2"`
}

var GlobalConfig Config

// ConfigLoad reads the environment and refuses to start without the
// credentials the service cannot run without.
func ConfigLoad() {
	loadEnv()
	if err := envconfig.Process("", &GlobalConfig); err != nil {
		log.Fatal("config: ", err)
	}
	SetLogger(GlobalConfig.FileLog)
}

func loadEnv() {
	env := os.Getenv("APP_ENV")
	if "" == env {
		env = "development"
	}

	godotenv.Load(".env." + env + ".local")

	if "test" != env {
		godotenv.Load(".env.local")
	}
	godotenv.Load(".env." + env)
	godotenv.Load()
}
