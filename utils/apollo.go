package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dealdialer/config"

	"github.com/sirupsen/logrus"
)

// ApolloClient searches the lead provider for companies matching a
// campaign's target criteria.
type ApolloClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewApolloClient() *ApolloClient {
	return &ApolloClient{
		BaseURL: config.AppConfig.Apollo.BaseURL,
		APIKey:  config.AppConfig.Apollo.APIKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CompanySearchCriteria mirrors the campaign's targeting fields.
type CompanySearchCriteria struct {
	Industry  string
	Geography string
	Page      int
	PerPage   int
}

// CompanyResult is one matched organization.
type CompanyResult struct {
	Name         string
	Industry     string
	Location     string
	Website      string
	Phone        string
	ContactName  string
	ContactTitle string
	ContactEmail string
}

type apolloSearchRequest struct {
	KeywordTags []string `json:"q_organization_keyword_tags,omitempty"`
	Locations   []string `json:"organization_locations,omitempty"`
	Page        int      `json:"page"`
	PerPage     int      `json:"per_page"`
}

type apolloSearchResponse struct {
	Organizations []struct {
		Name       string `json:"name"`
		Industry   string `json:"industry"`
		City       string `json:"city"`
		State      string `json:"state"`
		WebsiteURL string `json:"website_url"`
		Phone      string `json:"phone"`
	} `json:"organizations"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// SearchCompanies queries the provider's mixed company search endpoint.
func (ac *ApolloClient) SearchCompanies(ctx context.Context, criteria CompanySearchCriteria) ([]CompanyResult, error) {
	if ac.APIKey == "" {
		return nil, &ExternalApiError{Service: "apollo", Msg: "api key not configured"}
	}

	page := criteria.Page
	if page == 0 {
		page = 1
	}
	perPage := criteria.PerPage
	if perPage == 0 {
		perPage = 25
	}

	reqBody := apolloSearchRequest{Page: page, PerPage: perPage}
	if criteria.Industry != "" {
		reqBody.KeywordTags = []string{criteria.Industry}
	}
	if criteria.Geography != "" {
		reqBody.Locations = []string{criteria.Geography}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.BaseURL+"/v1/mixed_companies/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", ac.APIKey)

	resp, err := ac.HTTPClient.Do(req)
	if err != nil {
		return nil, &ExternalApiError{Service: "apollo", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &ExternalApiError{Service: "apollo", Status: resp.StatusCode, Msg: "company search"}
	}

	var searchResp apolloSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, &ExternalApiError{Service: "apollo", Msg: "decode: " + err.Error()}
	}

	results := make([]CompanyResult, 0, len(searchResp.Organizations))
	for _, org := range searchResp.Organizations {
		location := org.City
		if org.State != "" {
			if location != "" {
				location += ", "
			}
			location += org.State
		}
		results = append(results, CompanyResult{
			Name:     org.Name,
			Industry: org.Industry,
			Location: location,
			Website:  org.WebsiteURL,
			Phone:    org.Phone,
		})
	}

	logrus.WithFields(logrus.Fields{
		"results": len(results),
		"page":    searchResp.Pagination.Page,
	}).Info("Apollo company search completed")

	return results, nil
}
