package main

import (
	// Register handlers
	_ "github.com/go-gost/h2engine/pkg/handler/echo"
	_ "github.com/go-gost/h2engine/pkg/handler/http2"

	// Register listeners
	_ "github.com/go-gost/h2engine/pkg/listener/tcp"
)
