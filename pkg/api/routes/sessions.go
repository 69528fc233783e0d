package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/ubus-campus/ubus/pkg/reminder"
	"github.com/ubus-campus/ubus/pkg/session"
)

func SessionsRouter(router fiber.Router, manager *session.Manager) {
	router.Post("/", func(c *fiber.Ctx) error {
		return login(c, manager)
	})
	router.Get("/:student", func(c *fiber.Ctx) error {
		return sessionStatus(c, manager)
	})
	router.Delete("/:student", func(c *fiber.Ctx) error {
		return logout(c, manager)
	})
	router.Post("/:student/notifications", func(c *fiber.Ctx) error {
		return setNotifications(c, manager)
	})
	router.Post("/:student/refresh", func(c *fiber.Ctx) error {
		return refreshTimetable(c, manager)
	})
}

func sessionError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadGateway

	switch {
	case errors.Is(err, session.ErrNoSession):
		status = fiber.StatusNotFound
	case errors.Is(err, session.ErrInvalidStudent):
		status = fiber.StatusBadRequest
	case errors.Is(err, reminder.ErrPermissionDenied):
		status = fiber.StatusForbidden
	}

	c.SendStatus(status)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func login(c *fiber.Ctx, manager *session.Manager) error {
	var body struct {
		StudentID string `json:"student_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	started, err := manager.Login(c.UserContext(), body.StudentID)
	if err != nil {
		return sessionError(c, err)
	}

	c.Status(fiber.StatusCreated)
	return c.JSON(started.Scheduler.Status())
}

func sessionStatus(c *fiber.Ctx, manager *session.Manager) error {
	status, err := manager.Status(c.Params("student"))
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(status)
}

func logout(c *fiber.Ctx, manager *session.Manager) error {
	if err := manager.Logout(c.Params("student")); err != nil {
		return sessionError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func setNotifications(c *fiber.Ctx, manager *session.Manager) error {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&body); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	studentID := c.Params("student")
	if err := manager.SetNotifications(c.UserContext(), studentID, body.Enabled); err != nil {
		return sessionError(c, err)
	}

	return sessionStatus(c, manager)
}

func refreshTimetable(c *fiber.Ctx, manager *session.Manager) error {
	studentID := c.Params("student")
	if err := manager.Refresh(c.UserContext(), studentID); err != nil {
		return sessionError(c, err)
	}

	return sessionStatus(c, manager)
}
