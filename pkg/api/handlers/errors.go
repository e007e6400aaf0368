package handlers

import "github.com/gofiber/fiber/v3"

// ErrDatasetNotFound is returned when a dataset is not configured
var ErrDatasetNotFound = fiber.NewError(fiber.StatusNotFound, "dataset not found")

// ErrInvalidRunRequest is returned for a malformed run request body
var ErrInvalidRunRequest = fiber.NewError(fiber.StatusBadRequest, "invalid run request, expected {\"dataset\": \"...\", \"interval_end\": RFC3339}")

// ErrRunConflict is returned when the dataset and run date is already queued or running
var ErrRunConflict = fiber.NewError(fiber.StatusConflict, "a run for this dataset and date is already queued")
