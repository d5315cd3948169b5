package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// CartService is the cart application service used by CartHandler
type CartService interface {
	View(ctx context.Context, b cart.Backend) (*appcart.CartResponse, error)
	SelectedForCheckout(ctx context.Context, uid cart.UserID) (*appcart.CartResponse, error)
	Add(ctx context.Context, b cart.Backend, req appcart.AddItemRequest) (appcart.Mutation, error)
	Update(ctx context.Context, b cart.Backend, req appcart.UpdateItemRequest) (appcart.Mutation, error)
	SetSelected(ctx context.Context, b cart.Backend, id cart.ItemID, selected bool) (appcart.Mutation, error)
	Remove(ctx context.Context, b cart.Backend, id cart.ItemID) (appcart.Mutation, error)
	SelectAll(ctx context.Context, b cart.Backend, selected bool) (appcart.Mutation, error)
	Merge(ctx context.Context, uid cart.UserID, anon cart.Cart, present bool) appcart.MergeResult
}

// TokenCodec encodes anonymous carts into cookie tokens
type TokenCodec interface {
	Encode(c cart.Cart) (string, error)
	DecodeOrEmpty(token string) (cart.Cart, bool)
}

// CartHandler handles the cart endpoints for both anonymous and
// authenticated callers
type CartHandler struct {
	BaseHandler
	service CartService
	codec   TokenCodec
	cookie  config.CookieConfig
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(service CartService, codec TokenCodec, cookie config.CookieConfig) *CartHandler {
	return &CartHandler{
		service: service,
		codec:   codec,
		cookie:  cookie,
	}
}

// cookieToken holds the state of the request's cart cookie
type cookieToken struct {
	cart    cart.Cart
	present bool
	corrupt bool
}

func (h *CartHandler) readCookie(c *gin.Context) cookieToken {
	token, err := c.Cookie(h.cookie.CartName)
	if err != nil {
		return cookieToken{cart: cart.New()}
	}
	anon, corrupt := h.codec.DecodeOrEmpty(token)
	if corrupt {
		logger.L(c.Request.Context()).Debug("Discarding unreadable cart cookie")
	}
	return cookieToken{cart: anon, present: true, corrupt: corrupt}
}

// resolveBackend picks the authoritative cart for this request
func (h *CartHandler) resolveBackend(c *gin.Context) (cart.Backend, cookieToken) {
	tok := h.readCookie(c)
	if uid, ok := middleware.GetJWTUserID(c); ok {
		return cart.Authenticated(uid), tok
	}
	return cart.Anonymous(tok.cart), tok
}

func (h *CartHandler) sameSite() http.SameSite {
	switch strings.ToLower(h.cookie.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (h *CartHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(h.sameSite())
	c.SetCookie(h.cookie.CartName, value, maxAge, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, h.cookie.HTTPOnly)
}

func (h *CartHandler) clearCookie(c *gin.Context) {
	h.setCookie(c, "", -1)
}

// writeCart persists an anonymous mutation into the response cookie. An
// empty cart clears the cookie.
func (h *CartHandler) writeCart(c *gin.Context, m appcart.Mutation) error {
	if m.Backend != cart.BackendAnonymous {
		return nil
	}
	if m.ClearCookie() {
		h.clearCookie(c)
		return nil
	}
	token, err := h.codec.Encode(m.Cart)
	if err != nil {
		return err
	}
	h.setCookie(c, token, int(h.cookie.MaxAge.Seconds()))
	return nil
}

// respondMutation writes the cookie and the response of a cart write
func (h *CartHandler) respondMutation(c *gin.Context, m appcart.Mutation, err error, status int, data any) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	// An unencodable cart leaves the previous cookie in place
	if err := h.writeCart(c, m); err != nil {
		if !errors.Is(err, cart.ErrCartTooLarge) {
			logger.L(c.Request.Context()).Error("Failed to encode cart cookie", zap.Error(err))
		}
		h.HandleError(c, err)
		return
	}
	switch status {
	case http.StatusNoContent:
		h.NoContent(c)
	case http.StatusCreated:
		h.Created(c, data)
	default:
		h.Success(c, data)
	}
}

// Get returns the hydrated cart
// GET /api/v1/cart
func (h *CartHandler) Get(c *gin.Context) {
	b, tok := h.resolveBackend(c)
	view, err := h.service.View(c.Request.Context(), b)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if b.IsAnonymous() && tok.corrupt {
		h.clearCookie(c)
	}
	h.Success(c, view)
}

// Add adds an item to the cart
// POST /api/v1/cart
func (h *CartHandler) Add(c *gin.Context) {
	var req appcart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	b, _ := h.resolveBackend(c)
	m, err := h.service.Add(c.Request.Context(), b, req)
	h.respondMutation(c, m, err, http.StatusCreated, appcart.LineStateResponse{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Selected: req.Selected == nil || *req.Selected,
	})
}

// Update overwrites a cart line
// PUT /api/v1/cart
func (h *CartHandler) Update(c *gin.Context) {
	var req appcart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	b, _ := h.resolveBackend(c)
	m, err := h.service.Update(c.Request.Context(), b, req)
	h.respondMutation(c, m, err, http.StatusOK, appcart.LineStateResponse{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Selected: req.Selected == nil || *req.Selected,
	})
}

// Remove deletes a cart line
// DELETE /api/v1/cart
func (h *CartHandler) Remove(c *gin.Context) {
	var req appcart.RemoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	b, _ := h.resolveBackend(c)
	m, err := h.service.Remove(c.Request.Context(), b, cart.ItemID(req.ItemID))
	h.respondMutation(c, m, err, http.StatusNoContent, nil)
}

// SelectAll selects or deselects every line
// PUT /api/v1/cart/selection
func (h *CartHandler) SelectAll(c *gin.Context) {
	var req appcart.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	b, _ := h.resolveBackend(c)
	m, err := h.service.SelectAll(c.Request.Context(), b, *req.Selected)
	h.respondMutation(c, m, err, http.StatusOK, SelectAllResponse{Selected: *req.Selected})
}

// SetSelected changes the selection of one line
// PUT /api/v1/cart/items/:id/selection
func (h *CartHandler) SetSelected(c *gin.Context) {
	var uri ItemIDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.HandleBindError(c, err)
		return
	}
	var req appcart.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	b, _ := h.resolveBackend(c)
	m, err := h.service.SetSelected(c.Request.Context(), b, cart.ItemID(uri.ID), *req.Selected)
	h.respondMutation(c, m, err, http.StatusOK, gin.H{"sku_id": uri.ID, "selected": *req.Selected})
}

// Merge folds the cookie cart into the caller's account cart and clears the
// cookie. Called once by the client right after login.
// POST /api/v1/cart/merge
func (h *CartHandler) Merge(c *gin.Context) {
	uid, ok := middleware.GetJWTUserID(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	tok := h.readCookie(c)
	result := h.service.Merge(c.Request.Context(), uid, tok.cart, tok.present)
	if result.ClearToken {
		h.clearCookie(c)
	}
	h.Success(c, toMergeResponse(result))
}

// Selected returns the hydrated selected lines for checkout
// GET /api/v1/cart/selected
func (h *CartHandler) Selected(c *gin.Context) {
	uid, ok := middleware.GetJWTUserID(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	view, err := h.service.SelectedForCheckout(c.Request.Context(), uid)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// RegisterRoutes mounts the cart endpoints on rg
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	carts := router.NewDomainGroup("cart", "/cart")
	carts.GET("", h.Get).
		POST("", h.Add).
		PUT("", h.Update).
		DELETE("", h.Remove).
		PUT("/selection", h.SelectAll).
		PUT("/items/:id/selection", h.SetSelected)

	carts.Group("cart-authenticated", "").
		Use(middleware.RequireIdentity()).
		POST("/merge", h.Merge).
		GET("/selected", h.Selected)

	carts.RegisterRoutes(rg)
}
