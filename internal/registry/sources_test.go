package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/infrastructure/retry"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/registry"
)

func jsonServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestBrreg_Lookup(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/enheter/912676951": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{
				"organisasjonsnummer": "912676951",
				"navn": "FJORD BYGG AS",
				"hjemmeside": "www.fjordbygg.no",
				"stiftelsesdato": "2013-09-01",
				"naeringskode1": {"kode": "43.320", "beskrivelse": "Snekkerarbeid"},
				"antallAnsatte": 12,
				"konkurs": false,
				"underAvvikling": false
			}`))
		},
		"/enheter/923609016": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"organisasjonsnummer": "923609016", "navn": "AVVIKLING AS", "underAvvikling": true}`))
		},
		"/enheter/974760673": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte(`{"organisasjonsnummer": "974760673", "slettedato": "2020-01-01", "respons_klasse": "SlettetEnhet"}`))
		},
	})

	b := registry.NewBrreg(srv.Client(), registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	ctx := context.Background()

	data, err := b.Lookup(ctx, "912 676 951")
	require.NoError(t, err)
	assert.Equal(t, "FJORD BYGG AS", data.LegalName)
	assert.Equal(t, domain.CompanyStatusActive, data.CompanyStatus)
	assert.Equal(t, "www.fjordbygg.no", data.Website)
	require.NotNil(t, data.RegistrationDate)
	assert.Equal(t, 2013, data.RegistrationDate.Year())
	require.NotNil(t, data.EmployeeCount)
	assert.Equal(t, 12, *data.EmployeeCount)
	assert.Equal(t, []domain.IndustryCode{{Code: "43.320", Description: "Snekkerarbeid"}}, data.IndustryCodes)
	assert.Equal(t, registry.SourceBrreg, data.Source)
	assert.False(t, data.LastVerifiedRegistry.IsZero())

	data, err = b.Lookup(ctx, "923609016")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyStatusLiquidation, data.CompanyStatus)

	data, err = b.Lookup(ctx, "974760673")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyStatusDissolved, data.CompanyStatus)

	_, err = b.Lookup(ctx, "999999999")
	require.ErrorIs(t, err, registry.ErrNotFound)

	_, err = b.Lookup(ctx, "12345")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestBrreg_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/enheter/912676951": func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"navn": "FJORD BYGG AS"}`))
		},
	})

	b := registry.NewBrreg(srv.Client(), registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	data, err := b.Lookup(context.Background(), "912676951")
	require.NoError(t, err)
	assert.Equal(t, "FJORD BYGG AS", data.LegalName)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBrreg_ListPage(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/enheter": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("page"))
			assert.Equal(t, "2", r.URL.Query().Get("size"))
			assert.Equal(t, "AS", r.URL.Query().Get("organisasjonsform"))
			_, _ = w.Write([]byte(`{
				"_embedded": {"enheter": [
					{"organisasjonsnummer": "912676951", "navn": "FJORD BYGG AS", "hjemmeside": "fjordbygg.no"},
					{"organisasjonsnummer": "923609016", "navn": "UTEN SIDE AS"}
				]},
				"page": {"size": 2, "totalElements": 40, "totalPages": 20, "number": 3}
			}`))
		},
	})

	b := registry.NewBrreg(srv.Client(), registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	page, err := b.ListPage(context.Background(), 3, 2, "AS")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 20, page.TotalPages)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, registry.ListingEntry{OrgNumber: "912676951", Name: "FJORD BYGG AS", Homepage: "fjordbygg.no"}, page.Entries[0])
}

func TestCVR_Lookup(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "dk", r.URL.Query().Get("country"))
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			switch r.URL.Query().Get("search") {
			case "10150817":
				_, _ = w.Write([]byte(`{"vat": 10150817, "name": "Hav ApS", "startdate": "15/03 - 1990", "enddate": null,
					"employees": "50-99", "industrycode": 620100, "industrydesc": "Computerprogrammering", "creditbankrupt": false, "creditstatus": null}`))
			case "20202020":
				_, _ = w.Write([]byte(`{"vat": 20202020, "name": "Lukket ApS", "enddate": "01/01 - 2020", "employees": 3}`))
			default:
				_, _ = w.Write([]byte(`{"error": "NOT_FOUND", "t": 0}`))
			}
		},
	})

	c := registry.NewCVR(srv.Client(), registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	ctx := context.Background()

	data, err := c.Lookup(ctx, "DK10150817")
	require.NoError(t, err)
	assert.Equal(t, "Hav ApS", data.LegalName)
	assert.Equal(t, domain.CompanyStatusActive, data.CompanyStatus)
	require.NotNil(t, data.RegistrationDate)
	assert.Equal(t, time.March, data.RegistrationDate.Month())
	require.NotNil(t, data.EmployeeCount)
	assert.Equal(t, 50, *data.EmployeeCount)
	assert.Equal(t, "620100", data.IndustryCodes[0].Code)

	data, err = c.Lookup(ctx, "20202020")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyStatusDissolved, data.CompanyStatus)
	assert.Equal(t, 3, *data.EmployeeCount)

	_, err = c.Lookup(ctx, "30303030")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestPRH_Lookup(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/companies": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("businessId") != "0112038-9" {
				_, _ = w.Write([]byte(`{"totalResults": 0, "companies": []}`))
				return
			}
			_, _ = w.Write([]byte(`{"totalResults": 1, "companies": [{
				"businessId": {"value": "0112038-9", "registrationDate": "1978-03-15"},
				"names": [{"name": "Old Name Oy", "type": "1", "endDate": "1990-01-01"}, {"name": "Nokia Oyj", "type": "1"}],
				"mainBusinessLine": {"type": "26300", "descriptions": [{"languageCode": "1", "description": "Viestintälaitteiden valmistus"}, {"languageCode": "3", "description": "Manufacture of communication equipment"}]},
				"website": {"url": "www.nokia.com"},
				"status": "2",
				"companySituations": [{"type": "SANE", "endDate": "2001-01-01"}]
			}]}`))
		},
	})

	p := registry.NewPRH(srv.Client(), registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	ctx := context.Background()

	data, err := p.Lookup(ctx, "FI01120389")
	require.NoError(t, err)
	assert.Equal(t, "Nokia Oyj", data.LegalName)
	assert.Equal(t, domain.CompanyStatusActive, data.CompanyStatus, "ended situations are ignored")
	assert.Equal(t, "www.nokia.com", data.Website)
	assert.Equal(t, "Manufacture of communication equipment", data.IndustryCodes[0].Description)

	_, err = p.Lookup(ctx, "1234567-8")
	require.ErrorIs(t, err, registry.ErrNotFound)
	_, err = p.Lookup(ctx, "abc")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCompaniesHouse_Lookup(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/company/00445790": func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "ch-key", user)
			assert.Empty(t, pass)
			_, _ = w.Write([]byte(`{"company_name": "TESCO PLC", "company_number": "00445790",
				"company_status": "active", "date_of_creation": "1947-11-27", "sic_codes": ["47110"]}`))
		},
	})

	ch := registry.NewCompaniesHouse(srv.Client(), "ch-key", registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	data, err := ch.Lookup(context.Background(), "445790")
	require.NoError(t, err)
	assert.Equal(t, "TESCO PLC", data.LegalName)
	assert.Equal(t, domain.CompanyStatusActive, data.CompanyStatus)
	assert.Equal(t, []domain.IndustryCode{{Code: "47110"}}, data.IndustryCodes)

	_, err = ch.Lookup(context.Background(), "SC999999")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestOpenCorporates_Lookup(t *testing.T) {
	t.Parallel()

	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/companies/se/5560360793": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tok", r.URL.Query().Get("api_token"))
			_, _ = w.Write([]byte(`{"results": {"company": {"name": "Volvo AB", "company_number": "5560360793",
				"incorporation_date": "1926-01-01", "dissolution_date": null, "current_status": "Active",
				"industry_codes": [{"industry_code": {"code": "29.10", "description": "Manufacture of motor vehicles"}}]}}}`))
		},
		"/companies/se/5560000000": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"results": {"company": {"name": "Gammal AB", "current_status": "Active", "dissolution_date": "2001-05-01"}}}`))
		},
	})

	oc := registry.NewOpenCorporates(srv.Client(), "tok", registry.SourceConfig{BaseURL: srv.URL, Retry: fastRetry()})
	se := oc.ForJurisdiction("SE")
	assert.Equal(t, registry.SourceOpenCorporates, se.Name())

	data, err := se.Lookup(context.Background(), "5560360793")
	require.NoError(t, err)
	assert.Equal(t, "Volvo AB", data.LegalName)
	assert.Equal(t, domain.CompanyStatusActive, data.CompanyStatus)
	assert.Equal(t, "29.10", data.IndustryCodes[0].Code)

	data, err = se.Lookup(context.Background(), "5560000000")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyStatusDissolved, data.CompanyStatus)

	_, err = se.Lookup(context.Background(), "1")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestNewDefaultVerifier_FallsBackToOpenCorporates(t *testing.T) {
	t.Parallel()

	var brregCalls, ocCalls atomic.Int32
	srv := jsonServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/brreg/enheter/912676951": func(w http.ResponseWriter, _ *http.Request) {
			brregCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		},
		"/oc/companies/no/912676951": func(w http.ResponseWriter, _ *http.Request) {
			ocCalls.Add(1)
			_, _ = w.Write([]byte(`{"results": {"company": {"name": "FJORD BYGG AS", "current_status": "Active"}}}`))
		},
	})

	v := registry.NewDefaultVerifier(srv.Client(), registry.Config{
		BrregBaseURL:          srv.URL + "/brreg",
		OpenCorporatesBaseURL: srv.URL + "/oc",
	}, nil)

	data, found := v.Verify(context.Background(), "NO", "912676951")
	require.True(t, found)
	assert.Equal(t, registry.SourceOpenCorporates, data.Source)
	assert.Equal(t, int32(1), brregCalls.Load())
	assert.Equal(t, int32(1), ocCalls.Load())

	_, ok := v.LookupFor("GB")
	assert.True(t, ok, "GB falls back to OpenCorporates without an API key")
}
