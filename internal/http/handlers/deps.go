package handlers

import (
	"time"

	"github.com/jmoiron/sqlx"

	"shopfront/internal/cache"
	"shopfront/internal/config"
	"shopfront/internal/docstore"
	"shopfront/internal/events"
	"shopfront/internal/identity"
	"shopfront/internal/repos"
	"shopfront/internal/services"
	"shopfront/internal/session"
)

type Deps struct {
	Auth *services.AuthService
	IDP  identity.Provider

	AuthHandler    *AuthHandler
	ProductHandler *ProductHandler
	SearchHandler  *SearchHandler
	CartHandler    *CartHandler
	OrderHandler   *OrderHandler
	SellerHandler  *SellerHandler
	AccountHandler *AccountHandler
	SessionHandler *SessionHandler

	Pages session.Pages
}

// NewDeps wires repositories and services over db. c and pub may be nil.
func NewDeps(db *sqlx.DB, cfg config.Config, idp identity.Provider, c cache.Cache, pub events.Publisher) *Deps {
	store := docstore.New(db, docstore.WithMaxAttempts(cfg.TxMaxAttempts))

	prodRepo := repos.NewProductRepo(store, c, cfg.CacheTTL)
	cartRepo := repos.NewCartRepo(store)
	orderRepo := repos.NewOrderRepo(store)
	userRepo := repos.NewUserRepo(store)

	authSvc := services.NewAuthService(idp, userRepo)
	catalogSvc := services.NewCatalogService(prodRepo)
	sellerSvc := services.NewSellerService(prodRepo)
	cartSvc := services.NewCartService(cartRepo, prodRepo)
	orderSvc := services.NewOrderService(cartRepo, orderRepo, cartSvc, pub)
	acctSvc := services.NewAccountService(userRepo)

	pages := session.DefaultPages()
	return &Deps{
		Auth:           authSvc,
		IDP:            idp,
		AuthHandler:    &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		ProductHandler: &ProductHandler{Catalog: catalogSvc},
		SearchHandler:  &SearchHandler{Catalog: catalogSvc},
		CartHandler:    &CartHandler{Cart: cartSvc},
		OrderHandler:   &OrderHandler{Orders: orderSvc},
		SellerHandler:  &SellerHandler{Seller: sellerSvc},
		AccountHandler: &AccountHandler{Account: acctSvc},
		SessionHandler: &SessionHandler{Source: idp, Pages: pages, Heartbeat: 20 * time.Second},
		Pages:          pages,
	}
}
