package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/fanstage/fanstage/internal/migration"
	"github.com/fanstage/fanstage/internal/server"
	"github.com/fanstage/fanstage/pkg/db"
	"github.com/fanstage/fanstage/pkg/log"
)

func main() {
	app := fx.New(
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
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
