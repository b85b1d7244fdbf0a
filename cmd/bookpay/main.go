package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/bookpay/internal/clock"
	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/logger"
	"github.com/smallbiznis/bookpay/internal/metrics"
	"github.com/smallbiznis/bookpay/internal/migration"
	"github.com/smallbiznis/bookpay/internal/notify"
	"github.com/smallbiznis/bookpay/internal/order"
	"github.com/smallbiznis/bookpay/internal/server"
	"github.com/smallbiznis/bookpay/internal/session"
	"github.com/smallbiznis/bookpay/internal/sweeper"
	"github.com/smallbiznis/bookpay/internal/verify"
	"github.com/smallbiznis/bookpay/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		session.Module,
		order.Module,
		verify.Module,
		notify.Module,
		sweeper.Module,
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
