package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newCampaignApp wires the campaign routes behind a stub auth layer
// that injects the given banker.
func newCampaignApp(db *gorm.DB, banker *models.Banker, apollo *utils.ApolloClient) *fiber.App {
	cc := &CampaignController{DB: db, Logger: testLogger(), Apollo: apollo}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("banker", banker)
		c.Locals("bankerID", banker.ID)
		return c.Next()
	})
	app.Post("/campaigns", cc.CreateCampaign)
	app.Get("/campaigns", cc.GetCampaigns)
	app.Get("/campaigns/:id", cc.GetCampaign)
	app.Put("/campaigns/:id", cc.UpdateCampaign)
	app.Delete("/campaigns/:id", cc.DeleteCampaign)
	app.Post("/campaigns/:id/sync", cc.SyncCompanies)
	return app
}

func fakeApollo(t *testing.T, names ...string) *utils.ApolloClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/mixed_companies/search", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		orgs := make([]map[string]string, 0, len(names))
		for _, name := range names {
			orgs = append(orgs, map[string]string{
				"name":     name,
				"industry": "HVAC services",
				"city":     "Chicago",
				"state":    "IL",
				"phone":    "+13125550100",
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"organizations": orgs,
			"pagination":    map[string]int{"page": 1, "total_pages": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return &utils.ApolloClient{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()}
}

func TestCreateCampaignDefaultsToDraft(t *testing.T) {
	db := newTestDB(t)
	banker, _, _ := seedProspect(t, db)
	app := newCampaignApp(db, banker, nil)

	body := `{"name": "Southeast logistics", "industry": "Logistics", "geography": "Southeast US"}`
	req := httptest.NewRequest("POST", "/campaigns", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out models.Campaign
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "draft", out.Status)
	assert.Equal(t, banker.ID, out.BankerID)
}

func TestGetCampaignScopedToBanker(t *testing.T) {
	db := newTestDB(t)
	_, campaign, _ := seedProspect(t, db)

	other := &models.Banker{Name: "Riley Chen", Email: "riley@example.com"}
	require.NoError(t, other.SetPassword("another-password-1"))
	require.NoError(t, db.Create(other).Error)

	app := newCampaignApp(db, other, nil)
	req := httptest.NewRequest("GET", fmt.Sprintf("/campaigns/%d", campaign.ID), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSyncCompaniesSkipsExistingNames(t *testing.T) {
	db := newTestDB(t)
	banker, campaign, company := seedProspect(t, db)

	// The provider returns the already-present company plus two new ones.
	apollo := fakeApollo(t, company.Name, "Windy City Heating", "Prairie Air Co")
	app := newCampaignApp(db, banker, apollo)

	req := httptest.NewRequest("POST", fmt.Sprintf("/campaigns/%d/sync", campaign.ID), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Fetched int `json:"fetched"`
		Added   int `json:"added"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3, out.Fetched)
	assert.Equal(t, 2, out.Added)

	var companies []models.SellerCompany
	require.NoError(t, db.Where("campaign_id = ?", campaign.ID).Find(&companies).Error)
	assert.Len(t, companies, 3)
	for _, sc := range companies {
		if sc.ID != company.ID {
			assert.Equal(t, "apollo", sc.Source)
			assert.Equal(t, "not_contacted", sc.Status)
		}
	}

	var storedCampaign models.Campaign
	require.NoError(t, db.First(&storedCampaign, campaign.ID).Error)
	assert.NotNil(t, storedCampaign.LastSyncedAt)

	// Syncing again adds nothing new.
	resp, err = app.Test(httptest.NewRequest("POST", fmt.Sprintf("/campaigns/%d/sync", campaign.ID), nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Added)
}

func TestSyncCompaniesSurfacesProviderFailure(t *testing.T) {
	db := newTestDB(t)
	banker, campaign, _ := seedProspect(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	apollo := &utils.ApolloClient{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()}

	app := newCampaignApp(db, banker, apollo)
	resp, err := app.Test(httptest.NewRequest("POST", fmt.Sprintf("/campaigns/%d/sync", campaign.ID), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}
