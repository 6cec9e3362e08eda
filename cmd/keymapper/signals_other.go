//go:build !unix

package main

import (
	"context"

	"github.com/dshills/keymapper/internal/app"
)

func watchSignals(context.Context, *app.Application) {}
