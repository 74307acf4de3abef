package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog-api/internal/apperr"
	"catalog-api/internal/domain"
	"catalog-api/internal/store"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort keys accepted by Search.
const (
	SortByName      = "name"
	SortByPrice     = "price"
	SortByCreatedAt = "createdAt"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// StockOperation is the direction of a stock adjustment.
type StockOperation string

const (
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

// Pagination defaults and caps per the public query contract.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// CreateInput carries the fields for a new product. IsActive defaults to
// true and Tags to an empty list when absent.
type CreateInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Stock       int
	ImageURL    string
	Tags        []string
	IsActive    *bool
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	Stock       *int
	ImageURL    *string
	Tags        []string
	IsActive    *bool
}

// SearchParams filters, sorts and paginates the collection. Zero values
// mean "not given" and fall back to the documented defaults.
type SearchParams struct {
	Search   string
	Category string
	IsActive *bool
	SortBy   string
	Order    SortOrder
	Page     int
	Limit    int
}

// Statistics aggregates the whole collection, active and inactive alike.
type Statistics struct {
	Total            int              `json:"total"`
	Active           int              `json:"active"`
	Inactive         int              `json:"inactive"`
	Categories       map[string]int   `json:"categories"`
	AveragePrice     float64          `json:"averagePrice"`
	LowStockProducts []domain.Product `json:"lowStockProducts"`
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, input CreateInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params SearchParams) ([]domain.Product, int, error)
	AdjustStock(ctx context.Context, id uuid.UUID, quantity int, op StockOperation) (*domain.Product, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

type productService struct {
	store store.Store

	// mu serializes every load-mutate-persist cycle. The store rewrites the
	// whole file on each mutation, so without this two concurrent writers
	// would silently drop each other's changes.
	mu sync.Mutex
}

// NewProductService creates a new instance of ProductService
func NewProductService(st store.Store) ProductService {
	return &productService{store: st}
}

// GetByID retrieves a product by ID via a linear scan of the collection.
func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].ID == id {
			p := products[i].Clone()
			return &p, nil
		}
	}

	return nil, apperr.NotFound(fmt.Sprintf("product %s not found", id))
}

// Create validates the input, assigns a fresh ID and timestamps, appends the
// product to the collection and persists it.
func (s *productService) Create(ctx context.Context, input CreateInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateRequiredText("name", input.Name); err != nil {
		return nil, err
	}
	if err := validateRequiredText("description", input.Description); err != nil {
		return nil, err
	}
	if err := validateRequiredText("category", input.Category); err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if err := validateStock(input.Stock); err != nil {
		return nil, err
	}

	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	if conflictsByName(products, input.Name, uuid.Nil) {
		return nil, apperr.Conflict(fmt.Sprintf("a product named %q already exists", input.Name))
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		Tags:        input.Tags,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	products = append(products, product)
	if err := s.store.Persist(ctx, products); err != nil {
		return nil, err
	}

	created := product.Clone()
	return &created, nil
}

// Update merges the non-nil fields of input over the existing record.
// ID and CreatedAt are immutable; UpdatedAt is refreshed. Only the fields
// present in the partial update are re-validated.
func (s *productService) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, id, input)
}

// update is the lock-free body of Update, shared with AdjustStock.
func (s *productService) update(ctx context.Context, id uuid.UUID, input UpdateInput) (*domain.Product, error) {
	if input.Name != nil {
		if err := validateRequiredText("name", *input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		if err := validateRequiredText("description", *input.Description); err != nil {
			return nil, err
		}
	}
	if input.Category != nil {
		if err := validateRequiredText("category", *input.Category); err != nil {
			return nil, err
		}
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
	}
	if input.Stock != nil {
		if err := validateStock(*input.Stock); err != nil {
			return nil, err
		}
	}

	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range products {
		if products[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, apperr.NotFound(fmt.Sprintf("product %s not found", id))
	}

	if input.Name != nil && conflictsByName(products, *input.Name, id) {
		return nil, apperr.Conflict(fmt.Sprintf("a product named %q already exists", *input.Name))
	}

	p := &products[idx]
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Price != nil {
		p.Price = *input.Price
	}
	if input.Category != nil {
		p.Category = *input.Category
	}
	if input.Stock != nil {
		p.Stock = *input.Stock
	}
	if input.ImageURL != nil {
		p.ImageURL = *input.ImageURL
	}
	if input.Tags != nil {
		p.Tags = input.Tags
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.store.Persist(ctx, products); err != nil {
		return nil, err
	}

	updated := p.Clone()
	return &updated, nil
}

// Delete removes the record from the collection. There is no tombstone.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i := range products {
		if products[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return apperr.NotFound(fmt.Sprintf("product %s not found", id))
	}

	products = append(products[:idx], products[idx+1:]...)
	return s.store.Persist(ctx, products)
}

// Search filters, sorts and paginates the collection. The returned total is
// the match count before pagination.
func (s *productService) Search(ctx context.Context, params SearchParams) ([]domain.Product, int, error) {
	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	filtered := products[:0:0]
	for _, p := range products {
		if !matchesText(p, params.Search) {
			continue
		}
		if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
			continue
		}
		if params.IsActive != nil && p.IsActive != *params.IsActive {
			continue
		}
		filtered = append(filtered, p)
	}
	total := len(filtered)

	sortProducts(filtered, params.SortBy, params.Order)

	page := params.Page
	if page < DefaultPage {
		page = DefaultPage
	}
	limit := params.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	// Range-check the page before multiplying; (page-1)*limit overflows int
	// for contract-valid pages and would slip past the bounds check below.
	lastPage := (len(filtered) + limit - 1) / limit
	if page > lastPage {
		return []domain.Product{}, total, nil
	}

	start := (page - 1) * limit
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return filtered[start:end], total, nil
}

// AdjustStock adds or subtracts quantity from a product's stock. A subtract
// that would go negative fails before anything is written.
func (s *productService) AdjustStock(ctx context.Context, id uuid.UUID, quantity int, op StockOperation) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be a positive integer")
	}
	if op != StockAdd && op != StockSubtract {
		return nil, apperr.Validation(`operation must be "add" or "subtract"`)
	}

	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var current *domain.Product
	for i := range products {
		if products[i].ID == id {
			current = &products[i]
			break
		}
	}
	if current == nil {
		return nil, apperr.NotFound(fmt.Sprintf("product %s not found", id))
	}

	newStock := current.Stock + quantity
	if op == StockSubtract {
		newStock = current.Stock - quantity
		if newStock < 0 {
			return nil, apperr.Domain(fmt.Sprintf(
				"insufficient stock: cannot subtract %d from %d", quantity, current.Stock))
		}
	}

	return s.update(ctx, id, UpdateInput{Stock: &newStock})
}

// Statistics computes collection-wide aggregates in a single scan.
func (s *productService) Statistics(ctx context.Context) (*Statistics, error) {
	products, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Total:            len(products),
		Categories:       make(map[string]int),
		LowStockProducts: []domain.Product{},
	}

	var priceSum float64
	for _, p := range products {
		if p.IsActive {
			stats.Active++
			if p.Stock < domain.LowStockThreshold {
				stats.LowStockProducts = append(stats.LowStockProducts, p)
			}
		} else {
			stats.Inactive++
		}
		stats.Categories[p.Category]++
		priceSum += p.Price
	}

	if stats.Total > 0 {
		stats.AveragePrice = math.Round(priceSum/float64(stats.Total)*100) / 100
	}

	return stats, nil
}

// validateRequiredText rejects empty or whitespace-only required fields.
func validateRequiredText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(fmt.Sprintf("%s must not be empty", field))
	}
	return nil
}

func validatePrice(price float64) error {
	if price <= 0 {
		return apperr.Validation("price must be greater than zero")
	}
	if price > domain.MaxPrice {
		return apperr.Validation(fmt.Sprintf("price must not exceed %.2f", domain.MaxPrice))
	}
	return nil
}

func validateStock(stock int) error {
	if stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

// conflictsByName reports whether another record (any activity status)
// already uses name, compared case-insensitively. self is excluded so a
// record may keep its own name on update.
func conflictsByName(products []domain.Product, name string, self uuid.UUID) bool {
	for _, p := range products {
		if p.ID != self && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// matchesText reports whether the search text appears in the product name,
// description or any tag, case-insensitively. An empty query matches all.
func matchesText(p domain.Product, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(p.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// sortProducts orders the slice in place. Sorts are stable so ties keep
// their insertion order. Names compare with locale-aware collation.
func sortProducts(products []domain.Product, sortBy string, order SortOrder) {
	if order != SortOrderAsc && order != SortOrderDesc {
		order = SortOrderDesc
	}

	var less func(a, b domain.Product) bool
	switch sortBy {
	case SortByName:
		coll := collate.New(language.Und)
		less = func(a, b domain.Product) bool {
			return coll.CompareString(a.Name, b.Name) < 0
		}
	case SortByPrice:
		less = func(a, b domain.Product) bool { return a.Price < b.Price }
	default: // createdAt
		less = func(a, b domain.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.SliceStable(products, func(i, j int) bool {
		if order == SortOrderDesc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}
