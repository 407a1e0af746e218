// Package database provides the PostgreSQL database module: a module whose
// registration hook connects and applies pending migrations, and which hands
// out scoped sessions and entity repositories afterwards.
package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/providers"
)

// MigrationTable is the default bookkeeping table for applied scripts.
const MigrationTable = "__migrations"

// Capability is what consumers of a database module depend on.
type Capability interface {
	// Connect checks out one connection for the caller; Close the session
	// to return it.
	Connect(ctx context.Context) (*Session, error)
	Close() error
}

// Options configures a Postgres module.
type Options struct {
	DSN string
	// URL names the database in log lines; it must not carry the password.
	URL string

	MigrationsDir string
	// Migrations are script file names under MigrationsDir, applied in order.
	Migrations []string
	// Table defaults to MigrationTable.
	Table string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OptionsFrom maps the database section of the application config.
func OptionsFrom(cfg config.DatabaseConfig) Options {
	return Options{
		DSN:           cfg.DSN(),
		URL:           cfg.URL(),
		MigrationsDir: cfg.MigrationsDir,
		Migrations:    cfg.Migrations,
	}
}

// Postgres is the PostgreSQL implementation of Capability.
type Postgres struct {
	opts Options
	log  *logging.Logger
	open func() (*sqlx.DB, error)

	mu          sync.Mutex
	db          *sqlx.DB
	initialized bool
}

// NewPostgres creates a module instance. Nothing is opened until Init or
// Connect.
func NewPostgres(opts Options, log *logging.Logger) *Postgres {
	if opts.Table == "" {
		opts.Table = MigrationTable
	}
	if log == nil {
		log = logging.NewDefault("Database")
	}
	p := &Postgres{opts: opts, log: log}
	p.open = func() (*sqlx.DB, error) { return sqlx.Open("postgres", opts.DSN) }
	return p
}

// NewPostgresWithDB creates a module instance over an existing handle.
func NewPostgresWithDB(db *sqlx.DB, opts Options, log *logging.Logger) *Postgres {
	p := NewPostgres(opts, log)
	p.open = func() (*sqlx.DB, error) { return db, nil }
	return p
}

// Define declares the module type T as a Postgres database module and
// returns a reference registering it under token. The reference's hook runs
// Init, so the database is migrated when the module is first registered.
//
//	type MainDatabase struct{}
//	ref := database.Define[MainDatabase](defs, "MainDatabase", database.OptionsFrom(cfg.Database))
func Define[T any](defs *metadata.Registry, token metadata.Token, opts Options) metadata.ModuleRef {
	metadata.DefineModule[T](defs, metadata.ModuleFacts{
		Token: token,
		New: func(r metadata.Resolver) (any, error) {
			var log *logging.Logger
			if root, err := container.Resolve[*logging.Logger](r, providers.LoggerToken); err == nil {
				log = root.CreateLogger(string(token))
			}
			return NewPostgres(opts, log), nil
		},
	})
	return metadata.Ref[T]().WithHook(func(ctx context.Context, instance any) error {
		p, ok := instance.(*Postgres)
		if !ok {
			return errs.Definition("module %s is %T, not a Postgres module", token, instance)
		}
		return p.Init(ctx)
	})
}

// Init connects and applies pending migrations. A second call only warns.
func (p *Postgres) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		p.log.Warn("database module already initialized")
		return nil
	}
	p.log.Infof("initialize database %s", p.opts.URL)

	db, err := p.pool(ctx)
	if err != nil {
		return err
	}
	if err := p.migrate(ctx, db); err != nil {
		return err
	}
	p.initialized = true
	return nil
}

// Connect checks out a connection from the pool.
func (p *Postgres) Connect(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	db, err := p.pool(ctx)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.log.Debugf("connect to database %s", p.opts.URL)
	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, errs.Database(err, "connect")
	}
	return &Session{conn: conn, log: p.log}, nil
}

// Close closes the pool. The module can be connected again afterwards.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return errs.Database(err, "close")
	}
	return nil
}

// pool opens the handle on first use. Callers hold p.mu.
func (p *Postgres) pool(ctx context.Context) (*sqlx.DB, error) {
	if p.db != nil {
		return p.db, nil
	}
	db, err := p.open()
	if err != nil {
		return nil, errs.Database(err, "open %s", p.opts.URL)
	}
	if p.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.opts.MaxOpenConns)
	}
	if p.opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.opts.MaxIdleConns)
	}
	if p.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.Database(err, "ping %s", p.opts.URL)
	}
	p.db = db
	return db, nil
}

// migrate creates the bookkeeping table and applies every listed script not
// recorded there yet, each in its own transaction.
func (p *Postgres) migrate(ctx context.Context, db *sqlx.DB) error {
	table := p.opts.Table

	p.log.Debugf("create migration table %s if not exists", table)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		name VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`); err != nil {
		return errs.Database(err, "create migration table %s", table)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM `+table); err != nil {
		return errs.Database(err, "read migration table %s", table)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	pending := 0
	for _, script := range p.opts.Migrations {
		if done[script] {
			continue
		}
		pending++

		body, err := os.ReadFile(filepath.Join(p.opts.MigrationsDir, script))
		if err != nil {
			return errs.Database(err, "read migration %s", script)
		}
		if err := p.apply(ctx, db, script, string(body)); err != nil {
			return err
		}
		p.log.Infof("applied migration %s", script)
	}
	if pending == 0 {
		p.log.Info("all migrations already applied")
	}
	return nil
}

func (p *Postgres) apply(ctx context.Context, db *sqlx.DB, name, script string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Database(err, "migration %s", name)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return errs.Database(err, "migration %s", name)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+p.opts.Table+` (name) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback()
		return errs.Database(err, "record migration %s", name)
	}
	if err := tx.Commit(); err != nil {
		return errs.Database(err, "commit migration %s", name)
	}
	return nil
}
