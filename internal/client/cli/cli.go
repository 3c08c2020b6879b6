// Package cli — командный интерфейс клиента синхронизации.
//
// Каждая команда живет в своем файле и получает зависимости через Cli.
// Весь вывод идет через iocli.IO, чтобы команды тестировались без stdin/stdout.
package cli

import (
	"context"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/auth"
	"github.com/driftsync/driftsync/internal/client/data"
	"github.com/driftsync/driftsync/internal/client/iocli"
	"github.com/driftsync/driftsync/internal/client/sync"
)

type Cli struct {
	io      iocli.IO
	session *auth.Session
	data    *data.Service
	engine  *sync.Engine
}

func New(io iocli.IO, session *auth.Session, dataService *data.Service, engine *sync.Engine) *Cli {
	return &Cli{
		io:      io,
		session: session,
		data:    dataService,
		engine:  engine,
	}
}

// Run выполняет одну команду. Команды, требующие сессии, сами выпускают
// токен через session.Login.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx, args)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "add":
		return c.runAdd(ctx, args)
	case "get":
		return c.runGet(ctx, args)
	case "list":
		return c.runList(ctx, args)
	case "update":
		return c.runUpdate(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "sync":
		return c.runSync(ctx)
	case "watch":
		return c.runWatch(ctx)
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cli) PrintUsage() {
	c.io.Println("DriftSync Client")
	c.io.Println("")
	c.io.Println("Usage:")
	c.io.Println("  driftsync [OPTIONS] COMMAND")
	c.io.Println("")
	c.io.Println("Options:")
	c.io.Println("  --version          Show version information")
	c.io.Println("  --server URL       Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH          Path to local database (default: driftsync-client.db)")
	c.io.Println("")
	c.io.Println("Commands:")
	c.io.Println("  register [name]                 Register this device")
	c.io.Println("  login                           Issue a fresh access token")
	c.io.Println("  logout                          Remove local credentials")
	c.io.Println("  status                          Show device and queue status")
	c.io.Println("  add <resource> <json>           Create a record")
	c.io.Println("  get <resource> <id>             Show a record")
	c.io.Println("  list <resource>                 List records of a resource")
	c.io.Println("  update <resource> <id> <json>   Overlay fields onto a record")
	c.io.Println("  delete <resource> <id> [--force] Delete a record (soft by default)")
	c.io.Println("  sync                            Replay offline queue and pull changes")
	c.io.Println("  watch                           Keep syncing until interrupted")
	c.io.Println("")
	c.io.Println("Examples:")
	c.io.Println("  driftsync register laptop")
	c.io.Println("  driftsync add tasks '{\"title\": \"buy milk\"}'")
	c.io.Println("  driftsync update tasks b692f5c0 '{\"done\": true}'")
	c.io.Println("  driftsync list tasks")
	c.io.Println("  driftsync sync")
}
