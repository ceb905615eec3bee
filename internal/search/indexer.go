// Package search publishes business records to an Elasticsearch index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
)

// DefaultIndex is the index name used when none is configured.
const DefaultIndex = "businesses"

const (
	defaultIndexTimeout = 10 * time.Second
	errorBodyLimit      = 4096
)

// ErrNilRecord is returned when Index is called without a record.
var ErrNilRecord = errors.New("record is nil")

const indexMapping = `{
  "mappings": {
    "properties": {
      "org_number":        {"type": "keyword"},
      "country_code":      {"type": "keyword"},
      "name":              {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "domain":            {"type": "keyword"},
      "description":       {"type": "text"},
      "industry_category": {"type": "keyword"},
      "industry_codes":    {"type": "keyword"},
      "company_status":    {"type": "keyword"},
      "website_status":    {"type": "keyword"},
      "trust_score":       {"type": "integer"},
      "risk_level":        {"type": "keyword"},
      "languages":         {"type": "keyword"},
      "emails":            {"type": "keyword"},
      "phones":            {"type": "keyword"},
      "social_networks":   {"type": "keyword"},
      "translations":      {"type": "object", "dynamic": true},
      "last_scraped_at":   {"type": "date"},
      "updated_at":        {"type": "date"}
    }
  }
}`

// Document is the flattened search representation of a record.
type Document struct {
	OrgNumber        string            `json:"org_number"`
	CountryCode      string            `json:"country_code"`
	Name             string            `json:"name"`
	Domain           string            `json:"domain,omitempty"`
	Description      string            `json:"description,omitempty"`
	IndustryCategory string            `json:"industry_category,omitempty"`
	IndustryCodes    []string          `json:"industry_codes,omitempty"`
	CompanyStatus    string            `json:"company_status,omitempty"`
	WebsiteStatus    string            `json:"website_status,omitempty"`
	TrustScore       int               `json:"trust_score"`
	RiskLevel        string            `json:"risk_level,omitempty"`
	Languages        []string          `json:"languages,omitempty"`
	Emails           []string          `json:"emails,omitempty"`
	Phones           []string          `json:"phones,omitempty"`
	SocialNetworks   []string          `json:"social_networks,omitempty"`
	Translations     map[string]string `json:"translations,omitempty"`
	LastScrapedAt    *time.Time        `json:"last_scraped_at,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DocumentID is the document id for a record key.
func DocumentID(key domain.Key) string {
	return strings.ToLower(key.CountryCode) + "-" + key.OrgNumber
}

// NewDocument flattens rec.
func NewDocument(rec *domain.BusinessRecord) Document {
	doc := Document{
		OrgNumber:        rec.OrgNumber,
		CountryCode:      rec.CountryCode,
		Name:             rec.Name,
		Domain:           rec.DomainName(),
		Description:      rec.CompanyDescription,
		IndustryCategory: rec.IndustryCategory,
		CompanyStatus:    string(rec.RegistryData.CompanyStatus),
		WebsiteStatus:    string(rec.WebsiteStatus),
		TrustScore:       rec.TrustScore,
		RiskLevel:        rec.SiteSignals.RiskLevel,
		Languages:        rec.SiteSignals.Languages,
		Emails:           rec.ContactInfo.Emails,
		Phones:           rec.ContactInfo.Phones,
		LastScrapedAt:    rec.LastScrapedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if doc.Name == "" {
		doc.Name = rec.RegistryData.LegalName
	}
	for _, c := range rec.RegistryData.IndustryCodes {
		doc.IndustryCodes = append(doc.IndustryCodes, c.Code)
	}
	for network := range rec.SocialMedia {
		doc.SocialNetworks = append(doc.SocialNetworks, network)
	}
	slices.Sort(doc.SocialNetworks)
	if len(rec.Translations) > 0 {
		doc.Translations = make(map[string]string, len(rec.Translations))
		for lang, t := range rec.Translations {
			doc.Translations[lang] = t.Description
		}
	}
	return doc
}

// Indexer writes documents to one index.
type Indexer struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewIndexer creates an Indexer. An empty index name uses DefaultIndex.
func NewIndexer(client *es.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Indexer{client: client, index: index, log: log.With(logger.String("index", index))}
}

// IndexName returns the target index.
func (i *Indexer) IndexName() string {
	return i.index
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	closeBody(res)
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: unexpected status %s", i.index, res.Status())
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("create index %s: %w", i.index, responseError(res))
	}

	i.log.Info("Created search index")
	return nil
}

// Index upserts rec's document.
func (i *Indexer) Index(ctx context.Context, rec *domain.BusinessRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	body, err := json.Marshal(NewDocument(rec))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	id := DocumentID(rec.Key())
	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("index %s: %w", id, responseError(res))
	}

	i.log.Debug("Document indexed", logger.String("doc_id", id))
	return nil
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
	return fmt.Errorf("elasticsearch returned %s: %s", res.Status(), bytes.TrimSpace(body))
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
