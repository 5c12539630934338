package controllers

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/veloshop/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}
