package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facezhuk/internal/api/dto"
	"github.com/spec-kit/facezhuk/internal/repository"
	"github.com/spec-kit/facezhuk/internal/service"
	apperrors "github.com/spec-kit/facezhuk/pkg/util/errorutil"
)

// NotificationsHandler exposes the caller's notifications.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List handles GET /api/notifications?is_read=&limit=&offset=.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	read, err := optionalBool(c, "is_read")
	if err != nil {
		return err
	}
	filter := repository.NotificationFilter{
		Read:   read,
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}

	items, err := h.notifications.List(c.UserContext(), who, filter)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationResponses(items)})
}

// Mark handles PATCH /api/notifications?is_read=true|false.
func (h *NotificationsHandler) Mark(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	read, err := optionalBool(c, "is_read")
	if err != nil {
		return err
	}
	if read == nil {
		return apperrors.NewValidationError("is_read query parameter required", nil)
	}
	var req dto.MarkNotificationsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	updated, err := h.notifications.MarkAs(c.UserContext(), who, req.IDs, *read)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// Notify handles POST /api/notifications. Delivery happens asynchronously.
func (h *NotificationsHandler) Notify(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.NotifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if req.ToUsername == "" || req.Event == "" {
		return apperrors.NewValidationError("to_username and event required", nil)
	}

	if err := h.notifications.Notify(c.UserContext(), who, req.ToUsername, req.Event); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func optionalBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError(key+" must be true or false", nil)
	}
	return &v, nil
}
