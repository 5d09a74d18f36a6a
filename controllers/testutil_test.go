package controller

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"dealdialer/config"
	"dealdialer/models"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// seedBanker creates an extra banker account for tenancy tests.
func seedBanker(t *testing.T, db *gorm.DB, name, email string) *models.Banker {
	t.Helper()
	banker := &models.Banker{Name: name, Email: email, Firm: "Other Firm"}
	require.NoError(t, banker.SetPassword("hunter2!hunter2"))
	require.NoError(t, db.Create(banker).Error)
	return banker
}

// stubAuth injects the given banker the way the JWT middleware would.
func stubAuth(banker *models.Banker) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		c.Locals("banker", banker)
		c.Locals("bankerID", banker.ID)
		return c.Next()
	}
}

// seedProspect creates a banker, a campaign, and one seller company.
func seedProspect(t *testing.T, db *gorm.DB) (*models.Banker, *models.Campaign, *models.SellerCompany) {
	t.Helper()

	banker := &models.Banker{
		Name:  "Jordan Reed",
		Email: "jordan@example.com",
		Firm:  "Reed Capital",
	}
	require.NoError(t, banker.SetPassword("hunter2!hunter2"))
	require.NoError(t, db.Create(banker).Error)

	campaign := &models.Campaign{
		BankerID:  banker.ID,
		Name:      "Midwest HVAC rollup",
		Status:    "active",
		Industry:  "HVAC services",
		Geography: "Midwest US",
	}
	require.NoError(t, db.Create(campaign).Error)

	company := &models.SellerCompany{
		CampaignID:   campaign.ID,
		Name:         "Lakeside Mechanical",
		Industry:     "HVAC services",
		Location:     "Milwaukee, WI",
		ContactName:  "Pat Kowalski",
		ContactTitle: "Owner",
		ContactPhone: "+14145551234",
		ContactEmail: "pat@lakesidemech.com",
		Source:       "manual",
		Status:       "not_contacted",
	}
	require.NoError(t, db.Create(company).Error)

	return banker, campaign, company
}
