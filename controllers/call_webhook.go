package controller

import (
	"dealdialer/models"

	"github.com/gofiber/fiber/v2"
)

// HandleVoiceWebhook receives asynchronous events from the voice
// platform. The platform retries on any non-2xx response, and these
// events are not safely replayable (a replayed transcript duplicates a
// message), so every path out of this handler acknowledges with 200 and
// {"received": true}. Failures are visible in server logs only.
func (cc *CallController) HandleVoiceWebhook(c *fiber.Ctx) error {
	ack := fiber.Map{"received": true}

	ev, externalID, err := parseVoiceEnvelope(c.Body())
	if err != nil {
		cc.Logger.Printf("Discarding malformed webhook event: %v", err)
		return c.JSON(ack)
	}
	if externalID == "" {
		cc.Logger.Printf("Discarding webhook event with no call id (type %q)", ev.Type)
		return c.JSON(ack)
	}

	var call models.Call
	if err := cc.DB.Where("external_id = ?", externalID).First(&call).Error; err != nil {
		cc.Logger.Printf("Discarding webhook event for unknown external call %q", externalID)
		return c.JSON(ack)
	}

	if results := cc.applyVoiceEvent(&call, ev); len(results) > 0 {
		ack["results"] = results
	}
	return c.JSON(ack)
}
