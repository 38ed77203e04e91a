package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/makremffff/adwatch-backend/internal/api"
	"github.com/makremffff/adwatch-backend/internal/api/middleware"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

var App *miniapp.App

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.Header("Retry-After", fmt.Sprintf("%d", int(time.Until(info.ResetTime).Seconds())+1))
	c.JSON(429, gin.H{"ok": false, "error": "too many requests"})
}

// ApiInit wires the router and blocks serving it. Every game operation goes
// through the single POST endpoint; /health is the only other route.
func ApiInit(app *miniapp.App) {
	App = app
	router := gin.Default()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	store := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: redis.NewClient(&redis.Options{
			Addr:     GlobalConfig.RedisAddr,
			Password: GlobalConfig.RedisPassword,
			DB:       1,
		}),
		Rate:  time.Second,
		Limit: uint(GlobalConfig.RateLimit),
	})
	mw := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})
	// The Mini App is served from a Telegram webview, so the origin varies.
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		AllowMethods:    []string{"POST", "OPTIONS"},
		MaxAge:          24 * time.Hour,
	}))
	router.Use(func(c *gin.Context) {
		c.Set("app", App)
	})
	router.GET("/health", func(c *gin.Context) {
		health := gin.H{"status": "ok"}
		if App.Aqi != nil {
			// surface the commission backlog so ops can spot a stuck worker
			if q, err := App.Aqi.GetQueueInfo("commission"); err == nil {
				health["commission_pending"] = q.Pending
			}
		}
		c.JSON(http.StatusOK, health)
	})
	router.POST("/", mw, middleware.Session(), api.Dispatch)
	Logger.Info("api listening on :" + GlobalConfig.Port)
	fmt.Println("[ adwatch backend is up and listening to :" + GlobalConfig.Port + " ]")
	if err := router.Run(":" + GlobalConfig.Port); err != nil {
		log.Fatal("failed to run on :"+GlobalConfig.Port+": ", err)
	}
}
