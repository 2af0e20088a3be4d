package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hostvault/hostvault/internal/server/permissions"
)

// RouterDeps bundles everything the route table needs.
type RouterDeps struct {
	Owner       *OwnerHandler
	Grants      *GrantHandler
	Connections *ConnectionHandler
	Outbox      *OutboxHandler
	Inbox       *InboxHandler
	Transit     *TransitHandler
	Resolver    *permissions.Resolver
	JWTSecret   []byte
}

// NewRouter wires the route table. Perimeter endpoints authenticate with
// client auth tokens, owner endpoints with the session JWT; operations
// that unwrap keys additionally demand the master key header.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	perimeter := api.Group("/perimeter", clientAuth(deps.Resolver))
	{
		perimeter.POST("/transit/host/stream", deps.Transit.AcceptStream)
		perimeter.GET("/transit/query/keyheader", deps.Transit.QueryKeyHeader)
		perimeter.GET("/transit/query/payload", deps.Transit.QueryPayload)
	}

	api.POST("/owner/provision", deps.Owner.Provision)
	api.POST("/owner/login", deps.Owner.Login)

	ownerGroup := api.Group("/owner", ownerAuth(deps.JWTSecret))
	{
		withKey := ownerGroup.Group("", masterKey())
		{
			withKey.POST("/drives", deps.Grants.CreateDrive)
			withKey.POST("/grants", deps.Grants.CreateGrant)
			withKey.POST("/grants/:id/tokens", deps.Grants.IssueToken)
		}

		ownerGroup.GET("/drives", deps.Grants.ListDrives)
		ownerGroup.GET("/grants", deps.Grants.ListGrants)
		ownerGroup.POST("/grants/:id/revoke", deps.Grants.RevokeGrant)
		ownerGroup.POST("/tokens/:id/revoke", deps.Grants.RevokeToken)

		ownerGroup.POST("/connections", deps.Connections.Connect)
		ownerGroup.GET("/connections", deps.Connections.List)
		ownerGroup.DELETE("/connections/:identity", deps.Connections.Disconnect)

		ownerGroup.GET("/outbox", deps.Outbox.List)
		ownerGroup.GET("/outbox/item", deps.Outbox.GetItem)
		ownerGroup.DELETE("/outbox/item", deps.Outbox.DeleteItem)
		ownerGroup.PUT("/outbox/item/priority", deps.Outbox.SetPriority)
		ownerGroup.POST("/outbox/send", deps.Outbox.Send)

		ownerGroup.GET("/inbox", deps.Inbox.List)
		ownerGroup.DELETE("/inbox/:id", deps.Inbox.Delete)
	}

	api.POST("/system/outbox/processor/process", ownerAuth(deps.JWTSecret), deps.Outbox.Process)

	return router
}
