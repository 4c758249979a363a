package directory

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lnxk/noisexk/internal/protocol"
	"gorm.io/gorm"
)

// SetupRoutes wires the directory's HTTP surface onto router.
func (d *Directory) SetupRoutes(router *gin.Engine) {
	router.POST("/api/v1/auth/login", d.handleLogin)

	nodes := router.Group("/api/v1/nodes")
	nodes.POST("", d.registerNode)
	nodes.GET("/:pubkey", d.lookupNode)

	admin := router.Group("/api/v1")
	admin.Use(AuthMiddleware(d.jwtSecret))
	admin.GET("/nodes", d.listNodes)
	admin.DELETE("/nodes/:pubkey", d.removeNode)
}

func (d *Directory) handleLogin(c *gin.Context) {
	var req protocol.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user User
	if err := d.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := GenerateToken(&user, d.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, protocol.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// registerNode upserts a node's directory entry, keyed by its static
// public key. Any node may announce itself; the directory is a
// rendezvous point, not an authorization gate.
func (d *Directory) registerNode(c *gin.Context) {
	var req protocol.RegisterNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	var node Node
	err := d.db.Where(Node{PublicKey: req.PublicKey}).
		Assign(Node{Address: req.Address, Platform: req.Platform, LastSeen: now}).
		FirstOrCreate(&node).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register node"})
		return
	}
	c.JSON(http.StatusOK, toNodeInfo(node))
}

func (d *Directory) lookupNode(c *gin.Context) {
	var node Node
	if err := d.db.Where("public_key = ?", c.Param("pubkey")).First(&node).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, toNodeInfo(node))
}

func (d *Directory) listNodes(c *gin.Context) {
	var nodes []Node
	if err := d.db.Find(&nodes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	infos := make([]protocol.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		infos = append(infos, toNodeInfo(n))
	}
	c.JSON(http.StatusOK, infos)
}

func (d *Directory) removeNode(c *gin.Context) {
	if err := d.db.Where("public_key = ?", c.Param("pubkey")).Delete(&Node{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func toNodeInfo(n Node) protocol.NodeInfo {
	return protocol.NodeInfo{
		PublicKey: n.PublicKey,
		Address:   n.Address,
		Platform:  n.Platform,
		LastSeen:  n.LastSeen,
	}
}
