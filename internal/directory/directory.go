// Package directory implements a small REST service mapping a node's
// static secp256k1 public key to its last-known dial address, the
// external connection-orchestrator contract the noise Machine itself
// stays agnostic of.
package directory

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/lnxk/noisexk/internal/config"
	"gorm.io/gorm"
)

// Directory is the node directory REST server.
type Directory struct {
	db        *gorm.DB
	router    *gin.Engine
	jwtSecret string
	config    *config.DirectoryConfig
	log       *slog.Logger
}

// New builds a Directory, opening its database and bootstrapping the
// default admin account if none exists.
func New(cfg *config.DirectoryConfig, log *slog.Logger) (*Directory, error) {
	db, err := InitDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	d := &Directory{
		db:        db,
		jwtSecret: cfg.JWTSecret,
		config:    cfg,
		log:       log,
	}

	if err := d.ensureAdminUser(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	d.router = router
	d.SetupRoutes(router)

	return d, nil
}

// Run starts the HTTP server and blocks until it exits.
func (d *Directory) Run() error {
	d.log.Info("directory starting", "listen", d.config.Listen)
	return d.router.Run(d.config.Listen)
}

func (d *Directory) ensureAdminUser(username, password string) error {
	var count int64
	d.db.Model(&User{}).Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return d.db.Create(&User{Username: username, Password: hash}).Error
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
