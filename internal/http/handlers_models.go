package http

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docflow/internal/broker"
	"docflow/internal/dispatch"
	"docflow/internal/status"
)

// modelPullHandler queues a model download on the inference runtime.
func modelPullHandler(c *fiber.Ctx) error {
	d := deps(c)

	var req ModelPullRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'name'",
		})
	}

	err := d.Dispatcher.SubmitModelPull(c.Context(), name)

	var running *dispatch.AlreadyRunningError
	switch {
	case err == nil:
		return c.JSON(SuccessResponse{
			Success: true,
			Message: "Model pull queued",
			Data:    ProgressData{ID: name, Status: status.ModelQueued},
		})
	case errors.As(err, &running):
		msg := "Model is already being pulled"
		if running.Status == status.ModelCompleted {
			msg = "Model has already been downloaded"
		}
		return c.JSON(SuccessResponse{
			Success: true,
			Message: msg,
			Data:    ProgressData{ID: name, Status: running.Status, Progress: running.Progress},
		})
	case errors.Is(err, broker.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Success: false,
			Code:    "BROKER_UNAVAILABLE",
			Error:   "Message broker unavailable, try again later",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "DISPATCH_FAILED",
			Error:   err.Error(),
		})
	}
}

// modelProgressHandler reports a model download's tracked state.
func modelProgressHandler(c *fiber.Ctx) error {
	d := deps(c)
	name, err := urlDecodeParam(c, "name")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Invalid model name",
		})
	}

	val, ok, err := d.Models.Status(c.Context(), name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}
	if !ok {
		val = "unknown"
	}

	pct, err := d.Models.Progress(c.Context(), name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "Progress",
		Data:    ProgressData{ID: name, Status: val, Progress: pct},
	})
}

// modelDownloadsHandler lists models currently being pulled. Backed by
// a full scan of the model namespace.
func modelDownloadsHandler(c *fiber.Ctx) error {
	d := deps(c)

	names, err := d.Models.Downloading(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}
	if names == nil {
		names = []string{}
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "Active downloads",
		Data:    names,
	})
}

// modelsHandler lists models installed on the inference runtime. Pure
// passthrough; the runtime owns model management.
func modelsHandler(c *fiber.Ctx) error {
	d := deps(c)

	models, err := d.Ollama.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Success: false,
			Code:    "UPSTREAM_ERROR",
			Error:   "Inference runtime unreachable",
		})
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "Installed models",
		Data:    models,
	})
}

// urlDecodeParam unescapes a path parameter; model names like
// "llama3.2-vision:11b" arrive percent-encoded.
func urlDecodeParam(c *fiber.Ctx, name string) (string, error) {
	return url.PathUnescape(c.Params(name))
}
