package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/migration"
	"github.com/smallbiznis/invois/internal/server"
	"github.com/smallbiznis/invois/pkg/db"
	"github.com/smallbiznis/invois/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,

		// HTTP surface plus every domain module it depends on
		server.Module,

		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
