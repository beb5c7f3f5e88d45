package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PullHandler describes the component that resolves a request against the
// local cache and the origin. It allows injecting fake handlers during tests.
type PullHandler interface {
	Handle(fiber.Ctx) error
}

// PullHandlerFunc adapts a function to the PullHandler interface.
type PullHandlerFunc func(fiber.Ctx) error

// Handle makes PullHandlerFunc satisfy PullHandler.
func (f PullHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Pull   PullHandler
}

const contextKeyRequestID = "_pullcdn_request_id"

// DiagnosticsPrefix 下的路径不进入缓存流程。
const DiagnosticsPrefix = "/-/"

// NewApp builds a Fiber application with request-id middleware and a
// catch-all route delegating to the pull handler.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Pull == nil {
		return nil, errors.New("pull handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return opts.Pull.Handle(c)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，并写入 X-Request-ID 响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// errorHandler 兜底处理 handler 返回的错误，保证客户端总能收到完整响应。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		logger.WithFields(logrus.Fields{
			"action":     "error_handler",
			"status":     status,
			"request_id": RequestID(c),
		}).WithError(err).Error("request_failed")
		c.Set(fiber.HeaderCacheControl, "private")
		return c.Status(status).JSON(fiber.Map{"error": "request_failed"})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, DiagnosticsPrefix)
}
