package miniapp

import (
	"context"
	"encoding/json"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/makremffff/adwatch-backend/internal/actiontoken"
	"github.com/makremffff/adwatch-backend/internal/telegram"
)

// MembershipChecker answers whether a user is a member of a channel. The Bot
// API client implements it; tests stub it.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatId string, userId int64) (bool, error)
}

type App struct {
	Rdb        *redis.Client
	Db         *gorm.DB
	Aqc        *asynq.Client
	Aqi        *asynq.Inspector
	Membership MembershipChecker
	BotToken   string
}

func Init() *App {
	loadEnv()
	redisClient := setupRedis()
	db := setupDb()
	asynqClient := setupAsynqClient()
	asynqInspector := setupAsynqInspector()
	botToken := os.Getenv("BOT_TOKEN")

	app := &App{
		Rdb:        redisClient,
		Db:         db,
		Aqc:        asynqClient,
		Aqi:        asynqInspector,
		Membership: telegram.NewMembership(botToken),
		BotToken:   botToken,
	}
	isSet := false
	appConfigRaw, _ := app.Rdb.Get(context.Background(), "app_config").Result()
	if len(appConfigRaw) > 0 {
		err := json.Unmarshal([]byte(appConfigRaw), &CurrentAppConfig)
		if err != nil {
		} else {
			isSet = true
		}
	}
	if !isSet {
		currentConfig, _ := json.Marshal(DefaultAppConfig)
		app.Rdb.Set(context.Background(), "app_config", currentConfig, 0)
		CurrentAppConfig = DefaultAppConfig
	}
	return app
}

func setupRedis() *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	return redisClient
}

func setupDb() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("failed to connect to the db")
	}
	err = db.AutoMigrate(
		&User{},
		&Task{},
		&TaskCompletion{},
		&Payout{},
		&Incident{},
		&Ref{},
		&actiontoken.Token{},
	)
	if err != nil {
		panic("failed to run migrations")
	}

	return db
}

func setupAsynqClient() *asynq.Client {
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return asynqClient
}

func setupAsynqInspector() *asynq.Inspector {
	asynqInspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return asynqInspector
}

// SetupAsynqServer builds the worker side of the queue; the commission queue
// is the only one this backend uses.
func SetupAsynqServer() *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"commission": 1,
			},
		},
	)
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
