package controller

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dealdialer/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newActionApp(db *gorm.DB, banker *models.Banker) *fiber.App {
	ac := NewActionController(db, testLogger())
	app := fiber.New()
	app.Use(stubAuth(banker))
	app.Post("/actions", ac.CreateAction)
	app.Get("/actions", ac.GetActions)
	app.Put("/actions/:id", ac.UpdateAction)
	app.Post("/actions/:id/complete", ac.CompleteAction)
	app.Delete("/actions/:id", ac.DeleteAction)
	return app
}

func seedAction(t *testing.T, db *gorm.DB, companyID uint, scheduledFor time.Time) *models.Action {
	t.Helper()
	action := &models.Action{
		SellerCompanyID: companyID,
		ActionType:      models.ActionTypeCall,
		Title:           "Follow up on valuation question",
		ScheduledFor:    scheduledFor,
		Status:          models.ActionPending,
	}
	require.NoError(t, db.Create(action).Error)
	return action
}

func TestCreateActionValidatesType(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	app := newActionApp(db, banker)

	body := fmt.Sprintf(`{"seller_company_id": %d, "action_type": "fax", "title": "Send teaser", "scheduled_for": "2026-09-10T10:00:00Z"}`, company.ID)
	req := httptest.NewRequest("POST", "/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetActionsBuckets(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	app := newActionApp(db, banker)

	now := time.Now()
	overdue := seedAction(t, db, company.ID, now.AddDate(0, 0, -2))
	today := seedAction(t, db, company.ID, now)
	upcoming := seedAction(t, db, company.ID, now.AddDate(0, 0, 3))

	for bucket, wantID := range map[string]uint{
		models.BucketOverdue:  overdue.ID,
		models.BucketToday:    today.ID,
		models.BucketUpcoming: upcoming.ID,
	} {
		req := httptest.NewRequest("GET", "/actions?bucket="+bucket, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out struct {
			Actions []models.Action `json:"actions"`
			Count   int             `json:"count"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Equal(t, 1, out.Count, "bucket %s", bucket)
		assert.Equal(t, wantID, out.Actions[0].ID, "bucket %s", bucket)
	}
}

func TestGetActionsRejectsUnknownBucket(t *testing.T) {
	db := newTestDB(t)
	banker, _, _ := seedProspect(t, db)
	app := newActionApp(db, banker)

	req := httptest.NewRequest("GET", "/actions?bucket=someday", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestActionsScopedToOwningBanker(t *testing.T) {
	db := newTestDB(t)
	_, _, company := seedProspect(t, db)
	action := seedAction(t, db, company.ID, time.Now())
	other := seedBanker(t, db, "Riley Chen", "riley@example.com")
	app := newActionApp(db, other)

	// The listing stays empty for the other banker.
	resp, err := app.Test(httptest.NewRequest("GET", "/actions", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Count)

	// Completing someone else's action is a 404 and leaves it pending.
	url := fmt.Sprintf("/actions/%d/complete", action.ID)
	resp, err = app.Test(httptest.NewRequest("POST", url, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var stored models.Action
	require.NoError(t, db.First(&stored, action.ID).Error)
	assert.Equal(t, models.ActionPending, stored.Status)

	// So is scheduling one against their company.
	body := fmt.Sprintf(`{"seller_company_id": %d, "action_type": "call", "title": "Send teaser", "scheduled_for": "2026-09-10T10:00:00Z"}`, company.ID)
	req := httptest.NewRequest("POST", "/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCompleteActionOnlyFromPending(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	app := newActionApp(db, banker)
	action := seedAction(t, db, company.ID, time.Now())

	url := fmt.Sprintf("/actions/%d/complete", action.ID)

	resp, err := app.Test(httptest.NewRequest("POST", url, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stored models.Action
	require.NoError(t, db.First(&stored, action.ID).Error)
	assert.Equal(t, models.ActionCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	// Completing twice is a conflict, and the original completion
	// timestamp survives.
	resp, err = app.Test(httptest.NewRequest("POST", url, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var again models.Action
	require.NoError(t, db.First(&again, action.ID).Error)
	assert.Equal(t, stored.CompletedAt.Unix(), again.CompletedAt.Unix())
}
