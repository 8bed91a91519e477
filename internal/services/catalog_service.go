package services

import (
	"context"
	"strings"

	"shopfront/internal/domain"
	"shopfront/internal/repos"
	"shopfront/internal/session"
)

type CatalogService struct {
	Prods *repos.ProductRepo
}

func NewCatalogService(prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Prods: prods}
}

// Home lists published products, newest first.
func (s *CatalogService) Home(ctx context.Context, category string) ([]domain.Product, error) {
	ps, err := s.Prods.ListPublished(ctx, category)
	return ps, wrap("product.list", err)
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.Prods.Categories(ctx)
	return cats, wrap("product.categories", err)
}

func (s *CatalogService) Product(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.Prods.Get(ctx, id)
	if notFound(err) {
		return domain.Product{}, ErrProductNotFound
	}
	return p, wrap("product.get", err)
}

func (s *CatalogService) Search(ctx context.Context, q string) ([]domain.Product, error) {
	ps, err := s.Prods.Search(ctx, q)
	return ps, wrap("product.search", err)
}

// SellerService lets signed-in users list and publish their own products.
type SellerService struct {
	Prods *repos.ProductRepo
}

func NewSellerService(prods *repos.ProductRepo) *SellerService {
	return &SellerService{Prods: prods}
}

type ProductInput struct {
	Title       string
	Price       float64
	Category    string
	ImageURL    string
	Description string
}

func (s *SellerService) Products(ctx context.Context, sess *session.Context) ([]domain.Product, error) {
	uid, ok := sess.UID()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	ps, err := s.Prods.ListByOwner(ctx, uid)
	return ps, wrap("product.list_own", err)
}

// Create stores a published product owned by the caller.
func (s *SellerService) Create(ctx context.Context, sess *session.Context, in ProductInput) (string, error) {
	uid, ok := sess.UID()
	if !ok {
		return "", ErrNotAuthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Title == "" || in.Price <= 0 || in.ImageURL == "" {
		return "", &ValidationError{Field: "product", Message: "Please fill title, price and image."}
	}
	id, err := s.Prods.Create(ctx, domain.Product{
		Title:       in.Title,
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		ImageURL:    in.ImageURL,
		Description: strings.TrimSpace(in.Description),
		Published:   true,
		CreatedBy:   uid,
	})
	return id, wrap("product.create", err)
}

// SetPublished toggles visibility of one of the caller's products.
func (s *SellerService) SetPublished(ctx context.Context, sess *session.Context, id string, published bool) error {
	uid, ok := sess.UID()
	if !ok {
		return ErrNotAuthenticated
	}
	err := s.Prods.Update(ctx, id, func(p domain.Product) (map[string]any, error) {
		if p.CreatedBy != uid {
			return nil, ErrForbidden
		}
		if p.Published == published {
			return nil, nil
		}
		return map[string]any{"published": published}, nil
	})
	if notFound(err) {
		return ErrProductNotFound
	}
	return wrap("product.publish", err)
}
