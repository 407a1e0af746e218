// Package app is the example application: a users API mounted under /api, an
// admin area under /admin sharing the users module, a health check and an
// optional PostgreSQL database module.
package app

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/database"
	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/providers"
)

// Application tokens.
const (
	AppModuleToken      metadata.Token = "IAppModule"
	ApiModuleToken      metadata.Token = "IApiModule"
	AdminModuleToken    metadata.Token = "IAdminModule"
	DatabaseModuleToken metadata.Token = "IDatabaseModule"
	UserServiceToken    metadata.Token = "IUserService"
)

type (
	AppModule      struct{}
	ApiModule      struct{}
	AdminModule    struct{}
	UserModule     struct{}
	DatabaseModule struct{}
)

// Declare records every declaration of the example application in defs and
// returns the root module reference. The database module is only part of the
// tree when cfg enables it.
func Declare(defs *metadata.Registry, cfg *config.Config) metadata.ModuleRef {
	metadata.DefineEntity[User](defs, "users", "id", "email", "first_name", "last_name", "role", "status")

	var modules []metadata.ModuleRef
	if cfg.Database.Enabled {
		modules = append(modules, database.Define[*DatabaseModule](defs, DatabaseModuleToken, database.OptionsFrom(cfg.Database)))
	}
	modules = append(modules, metadata.Ref[*ApiModule](), metadata.Ref[*AdminModule]())

	metadata.DefineModule[*AppModule](defs, metadata.ModuleFacts{
		Token:       AppModuleToken,
		Modules:     modules,
		Controllers: []reflect.Type{metadata.TypeOf[*HealthController]()},
	})
	metadata.DefineModule[*ApiModule](defs, metadata.ModuleFacts{
		Token:    ApiModuleToken,
		BasePath: "/api",
		Modules:  []metadata.ModuleRef{metadata.Ref[*UserModule]()},
	})
	metadata.DefineModule[*AdminModule](defs, metadata.ModuleFacts{
		Token:       AdminModuleToken,
		Controllers: []reflect.Type{metadata.TypeOf[*AdminUserController]()},
		Providers:   []reflect.Type{metadata.TypeOf[*UserService]()},
		// already registered under /api; listed to show sharing is safe
		Modules: []metadata.ModuleRef{metadata.Ref[*UserModule]()},
	})
	metadata.DefineModule[*UserModule](defs, metadata.ModuleFacts{
		Controllers: []reflect.Type{metadata.TypeOf[*UserController]()},
		Providers:   []reflect.Type{metadata.TypeOf[*UserService]()},
	})

	metadata.DefineProvider[*UserService](defs, metadata.ProviderFacts{
		Token: UserServiceToken,
		New:   newUserService(defs),
	})

	declareControllers(defs)
	return metadata.Ref[*AppModule]()
}

func declareControllers(defs *metadata.Registry) {
	metadata.DefineController[*HealthController](defs, metadata.ControllerOptions{
		Path: "/health",
		New: func(r metadata.Resolver) (any, error) {
			cfg, err := container.Resolve[*config.Config](r, providers.ConfigToken)
			if err != nil {
				return nil, err
			}
			return &HealthController{cfg: cfg}, nil
		},
	})
	metadata.DefineAction[*HealthController](defs, "Check", metadata.ActionFacts{})

	metadata.DefineController[*UserController](defs, metadata.ControllerOptions{
		Path: "/users",
		New: func(r metadata.Resolver) (any, error) {
			users, err := container.Resolve[*UserService](r, UserServiceToken)
			if err != nil {
				return nil, err
			}
			return &UserController{users: users}, nil
		},
	})
	metadata.DefineAction[*UserController](defs, "List", metadata.ActionFacts{
		Params: metadata.Plan(metadata.Ctx(0), metadata.Res(1), metadata.Query("limit", 2)),
	})
	metadata.DefineAction[*UserController](defs, "Show", metadata.ActionFacts{
		Path:   "/:id",
		Params: metadata.Plan(metadata.Ctx(0), metadata.Param("id", 1)),
	})
	metadata.DefineAction[*UserController](defs, "Create", metadata.ActionFacts{
		Method: http.MethodPost,
		Params: metadata.Plan(metadata.Ctx(0), metadata.Body(1)),
	})
	metadata.DefineAction[*UserController](defs, "Edit", metadata.ActionFacts{
		Method: http.MethodPost,
		Path:   "/:id",
		Params: metadata.Plan(metadata.Param("id", 0)),
	})

	metadata.DefineController[*AdminUserController](defs, metadata.ControllerOptions{
		Base: "/admin",
		Path: "/users",
		New: func(r metadata.Resolver) (any, error) {
			users, err := container.Resolve[*UserService](r, UserServiceToken)
			if err != nil {
				return nil, err
			}
			return &AdminUserController{users: users}, nil
		},
	})
	metadata.DefineAction[*AdminUserController](defs, "GetUsers", metadata.ActionFacts{
		Params: metadata.Plan(metadata.Ctx(0)),
	})
}

// newUserService backs the service with the users repository when a database
// module is reachable, and with seeded in-memory users otherwise.
func newUserService(defs *metadata.Registry) metadata.Constructor {
	return func(r metadata.Resolver) (any, error) {
		var log *logging.Logger
		if root, err := container.Resolve[*logging.Logger](r, providers.LoggerToken); err == nil {
			log = root.CreateLogger("UserService")
		}

		db, err := container.Resolve[database.Capability](r, DatabaseModuleToken)
		switch {
		case err == nil:
			repo, err := database.NewRepository[User](defs, db)
			if err != nil {
				return nil, err
			}
			return NewUserService(repo, log), nil
		case errors.Is(err, errs.ErrUnregistered):
			return NewUserService(newMemoryStore(seedUsers()...), log), nil
		default:
			return nil, err
		}
	}
}
