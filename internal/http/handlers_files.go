package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"docflow/internal/broker"
	"docflow/internal/dispatch"
	"docflow/internal/extract"
	"docflow/internal/queue"
	"docflow/internal/status"
	"docflow/internal/storage"
)

// uploadHandler stores a PDF on shared storage and returns the job id
// derived from the stored name. Dispatch is a separate call; uploading
// alone starts nothing.
func uploadHandler(c *fiber.Ctx) error {
	d := deps(c)

	fh, err := c.FormFile("pdf")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "File is missing",
		})
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/pdf" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "INVALID_FILE_TYPE",
			Error:   "Only application/pdf uploads are accepted",
		})
	}

	src, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   "Failed to read upload",
		})
	}
	defer src.Close()

	name, size, err := d.Storage.SaveUpload(fh.Filename, src)
	if err != nil {
		code := "INTERNAL_ERROR"
		httpStatus := fiber.StatusInternalServerError
		if errors.Is(err, storage.ErrInvalidType) {
			code = "INVALID_FILE_TYPE"
			httpStatus = fiber.StatusBadRequest
		}
		return c.Status(httpStatus).JSON(ErrorResponse{
			Success: false,
			Code:    code,
			Error:   err.Error(),
		})
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "File uploaded successfully",
		Data: UploadData{
			ID:       extract.JobID(name),
			Filename: name,
			Path:     d.Storage.UploadPath(name),
			Size:     size,
		},
	})
}

// processHandler dispatches extraction of a previously uploaded file.
func processHandler(c *fiber.Ctx) error {
	d := deps(c)
	id := c.Params("id")

	opts := ProcessOptions{
		StartPage: 1,
		Format:    queue.FormatText,
		Engine:    queue.EngineTesseract,
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "BAD_REQUEST_INVALID_JSON",
				Error:   "Bad request, malformed JSON",
			})
		}
	}

	if opts.Format != queue.FormatText && opts.Format != queue.FormatJSON {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Unsupported format, expected text or json",
		})
	}
	if opts.Engine != queue.EngineTesseract && opts.Engine != queue.EngineOllama {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Unsupported engine, expected tesseract or ollama",
		})
	}
	if opts.Engine == queue.EngineOllama && opts.Model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Engine ollama requires a model",
		})
	}

	file := id + ".pdf"
	if !d.Storage.UploadExists(file) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "NOT_FOUND",
			Error:   "No uploaded file for id " + id,
		})
	}

	err := d.Dispatcher.SubmitFile(c.Context(), id, queue.FileExtractMessage{
		File:      file,
		StartPage: opts.StartPage,
		PageCount: opts.PageCount,
		Priority:  opts.Priority,
		Format:    opts.Format,
		Engine:    opts.Engine,
		Model:     opts.Model,
	})

	var running *dispatch.AlreadyRunningError
	switch {
	case err == nil:
		return c.JSON(SuccessResponse{
			Success: true,
			Message: "File queued for processing",
			Data: ProcessData{
				ID:     id,
				File:   file,
				Status: status.FilePending,
			},
		})
	case errors.As(err, &running):
		// Not a failure: the job is already tracked, report where it is.
		msg := "File is already being processed"
		if running.Status == status.FileDone {
			msg = "File has already been processed"
		}
		return c.JSON(SuccessResponse{
			Success: true,
			Message: msg,
			Data: ProcessData{
				ID:       id,
				File:     file,
				Status:   running.Status,
				Progress: running.Progress,
			},
		})
	case errors.Is(err, broker.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Success: false,
			Code:    "BROKER_UNAVAILABLE",
			Error:   "Message broker unavailable, try again later",
		})
	default:
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "DISPATCH_FAILED",
			Error:   err.Error(),
		})
	}
}

// progressHandler reports a file job's tracked state. An absent entry
// reads as unknown with zero progress, indistinguishable from a job
// that never started.
func progressHandler(c *fiber.Ctx) error {
	d := deps(c)
	id := c.Params("id")

	val, ok, err := d.Files.Status(c.Context(), id)
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

	pct, err := d.Files.Progress(c.Context(), id)
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
		Data:    ProgressData{ID: id, Status: val, Progress: pct},
	})
}

// contentHandler serves the processed output of a completed job.
func contentHandler(c *fiber.Ctx) error {
	d := deps(c)
	id := c.Params("id")

	data, ok, err := d.Storage.ReadProcessed(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "NOT_FOUND",
			Error:   "No processed content for id " + id,
		})
	}

	c.Type("json")
	return c.Send(data)
}
