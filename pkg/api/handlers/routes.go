package handlers

import "github.com/gofiber/fiber/v3"

// Register mounts the handlers on a router group
func (s *Server) Register(router fiber.Router) {
	router.Get("/datasets", s.ListDatasets)
	router.Get("/datasets/:name", s.GetDataset)
	router.Post("/runs", s.CreateRun)
}
