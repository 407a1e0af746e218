// Package container provides the hierarchical provider container that module
// trees are wired into.
//
// # Overview
//
// Every module gets its own child container. Resolution walks from a
// container up through its ancestors and never down, so providers declared
// by a module are visible to that module and its submodules only, while the
// framework tokens installed in the root are visible everywhere.
//
// Because Go has no runtime constructor reflection, auto-wiring is replaced
// by explicit factories. A factory receives a metadata.Resolver scoped to the
// container that owns the binding.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(defs)
//  2. Register framework providers: registry.Register(&providers.ConfigServiceProvider{...})
//  3. Boot: registry.Boot()
//  4. Walk the module tree (module.Builder), which calls RegisterModule,
//     CreateChildContainer and RegisterProvider
//  5. Serve requests
//
// # Bindings
//
//	// Transient: new instance every Resolve
//	c.Bind("Clock", func(metadata.Resolver) (any, error) { return &Clock{}, nil })
//
//	// Singleton: created once per owning container, reused
//	c.Singleton("cache", func(r metadata.Resolver) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](r, providers.ConfigToken)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.New(cfg), nil
//	})
//
//	// Pre-built value
//	c.Instance(providers.ConfigToken, cfg)
//
//	// Declared provider type
//	metadata.DefineProvider[*UserService](defs, metadata.ProviderFacts{Token: "IUserService"})
//	err := c.RegisterProvider(metadata.TypeOf[*UserService]())
//
// # Resolving
//
//	raw, err := c.Resolve("IUserService")
//	svc, err := container.Resolve[IUserService](c, "IUserService")
//
// # Modules
//
// RegisterModule builds a module at most once per container tree. The set of
// registered module tokens lives in a ModuleSet shared by the root and all of
// its descendants.
package container
