// Package gateway serves a read-mostly HTTP view of the chain and relays
// pre-signed transactions to a node.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gologme/log"
	"github.com/google/uuid"

	"github.com/gregorybednov/bountychain/client"
	"github.com/gregorybednov/bountychain/market"
)

const requestIDHeader = "X-Request-ID"

// Chain is what the gateway needs from a node. *client.Client implements it.
type Chain interface {
	Query(ctx context.Context, path string, v any) error
	Broadcast(ctx context.Context, tx []byte) (*client.TxResult, error)
}

type server struct {
	chain  Chain
	logger *log.Logger

	mu     sync.Mutex
	params *market.Params
}

// New builds the fiber app. It does not start listening.
func New(chain Chain, logger *log.Logger) *fiber.App {
	s := &server{chain: chain, logger: logger}
	app := fiber.New(fiber.Config{
		AppName:               "bountychain-gateway",
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(requestID, s.accessLog)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/params", s.getParams)
	app.Get("/bounties", s.listBounties)
	app.Get("/bounties/:addr", s.getBounty)
	app.Get("/bounties/:addr/submissions", s.listSubmissions)
	app.Get("/accounts/:key", s.getAccount)
	app.Get("/users/:key", s.getUser)
	app.Get("/clients/:key", s.getClient)
	app.Post("/tx", s.postTx)
	return app
}

// Serve runs the gateway on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, chain Chain, logger *log.Logger) error {
	app := New(chain, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr) }()
	logger.Infof("gateway listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("request_id", id)
	c.Set(requestIDHeader, id)
	return c.Next()
}

// accessLog renders handler errors itself so the logged status is the one sent.
func (s *server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}
	s.logger.Infof("%s %s %d %s id=%v", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start), c.Locals("request_id"))
	return nil
}

func (s *server) handleError(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Errorf("request %v: %v", c.Locals("request_id"), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":      msg,
		"request_id": c.Locals("request_id"),
	})
}

var notFound = []*market.Error{
	market.ErrBountyNotFound,
	market.ErrSubmissionNotFound,
	market.ErrClientNotFound,
	market.ErrUserNotFound,
	market.ErrEscrowAccountNotFound,
}

// statusFor maps node and handler errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	var qe *client.QueryError
	if !errors.As(err, &qe) {
		return fiber.StatusBadGateway, "node unavailable"
	}
	e, ok := market.Lookup(qe.Code)
	if qe.Codespace != market.Codespace || !ok {
		return fiber.StatusBadGateway, qe.Log
	}
	for _, nf := range notFound {
		if e == nf {
			return fiber.StatusNotFound, e.Error()
		}
	}
	switch e.Kind {
	case market.KindValidation:
		return fiber.StatusBadRequest, e.Error()
	case market.KindAuthorization:
		return fiber.StatusForbidden, e.Error()
	case market.KindState:
		return fiber.StatusConflict, e.Error()
	default:
		return fiber.StatusUnprocessableEntity, e.Error()
	}
}

// marketParams are fixed at genesis, so the first answer is kept.
func (s *server) marketParams(ctx context.Context) (market.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params != nil {
		return *s.params, nil
	}
	var p market.Params
	if err := s.chain.Query(ctx, "params", &p); err != nil {
		return p, err
	}
	s.params = &p
	return p, nil
}
