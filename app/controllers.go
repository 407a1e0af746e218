package app

import (
	"context"
	"net/http"

	kernel "github.com/km-arc/go-modular/framework/app"
	"github.com/km-arc/go-modular/framework/config"
	gohttp "github.com/km-arc/go-modular/framework/http"
)

// UserController serves /users inside whichever module prefix mounts it.
type UserController struct {
	kernel.Controller
	users *UserService
}

// List writes the active users itself; limit 0 means all.
func (c *UserController) List(ctx context.Context, w http.ResponseWriter, limit int) error {
	users, err := c.users.GetUsers(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	c.Response(w).JSON(http.StatusOK, users)
	return nil
}

// Show answers 404 through delegation when the user does not exist.
func (c *UserController) Show(ctx context.Context, id string) (*gohttp.ActionResult, error) {
	u, found, err := c.users.GetUser(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	return gohttp.OK(u), nil
}

func (c *UserController) Create(ctx context.Context, in *CreateUserInput) (*gohttp.ActionResult, error) {
	u, err := c.users.CreateUser(ctx, *in)
	if err != nil {
		return nil, err
	}
	return gohttp.Created(u), nil
}

func (c *UserController) Edit(id string) *gohttp.ActionResult {
	return gohttp.OK(map[string]string{"id": id})
}

// AdminUserController lists every user, inactive ones included.
type AdminUserController struct {
	users *UserService
}

func (c *AdminUserController) GetUsers(ctx context.Context) (*gohttp.ActionResult, error) {
	users, err := c.users.AllUsers(ctx)
	if err != nil {
		return nil, err
	}
	return gohttp.OK(users), nil
}

type HealthController struct {
	cfg *config.Config
}

func (c *HealthController) Check() *gohttp.ActionResult {
	return gohttp.OK(map[string]any{
		"status":   "ok",
		"env":      c.cfg.Env,
		"database": c.cfg.Database.Enabled,
	})
}
