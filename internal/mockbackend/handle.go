package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 12

// IPublisher announces order status changes.
type IPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

type handler struct {
	state     *State
	issuer    *Issuer
	publisher IPublisher
	mylog     logger.Logger
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

// fail maps a state error to its HTTP status.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		abort(c, http.StatusBadRequest, err)
	case errors.Is(err, apperr.ErrNotFound):
		abort(c, http.StatusNotFound, err)
	case errors.Is(err, apperr.ErrCancellationNotAllowed):
		abort(c, http.StatusConflict, err)
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}

func cartResponse(lines []models.CartLine) backend.CartResponse {
	resp := backend.CartResponse{Items: make([]backend.CartItemResponse, 0, len(lines))}
	for _, l := range lines {
		id := l.Key.ItemID
		item := backend.CartItemResponse{
			ItemType: l.Key.ItemType,
			Size:     l.Key.Size,
			Quantity: l.Quantity,
			Price:    l.UnitPrice,
			AddonIDs: append([]models.AddonQty{}, l.Addons...),
		}
		if l.Key.ItemType == models.ItemSnack {
			item.SnackID = &id
		} else {
			item.ProductID = &id
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) issueToken(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		abort(c, http.StatusBadRequest, errors.New("userId is required"))
		return
	}
	token, exp, err := h.issuer.Issue(req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	h.state.SeedOrders(req.UserID)
	h.mylog.Action("token_issued").Info("Issued session token", "user_id", req.UserID, "expires_at", exp)
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp})
}

func (h *handler) productsByCategory(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		abort(c, http.StatusBadRequest, errors.New("invalid page"))
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		abort(c, http.StatusBadRequest, errors.New("invalid size"))
		return
	}
	c.JSON(http.StatusOK, h.state.ProductsByCategory(c.Param("category"), page, size))
}

func (h *handler) product(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}
	p, ok := h.state.Product(id)
	if !ok {
		abort(c, http.StatusNotFound, errors.New("product not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) addons(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Addons())
}

// cartMutation decodes one cart item and applies op for the token's user.
func (h *handler) cartMutation(op func(userID string, item backend.CartItemRequest) ([]models.CartLine, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var item backend.CartItemRequest
		if err := c.ShouldBindJSON(&item); err != nil {
			abort(c, http.StatusBadRequest, errors.New("failed to parse JSON"))
			return
		}
		userID, ok := ownUser(c, item.UserID)
		if !ok {
			return
		}
		lines, err := op(userID, item)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(lines))
	}
}

func (h *handler) addCartItem(userID string, item backend.CartItemRequest) ([]models.CartLine, error) {
	return h.state.AddCartItems(userID, item)
}

func (h *handler) clearCart(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)
	userID, ok := ownUser(c, req.UserID)
	if !ok {
		return
	}
	h.state.ClearCart(userID)
	c.JSON(http.StatusOK, cartResponse(nil))
}

func (h *handler) mergeCart(c *gin.Context) {
	var items []backend.CartItemRequest
	if err := c.ShouldBindJSON(&items); err != nil {
		abort(c, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}
	userID := c.GetString(ctxUserID)
	for _, item := range items {
		if _, ok := ownUser(c, item.UserID); !ok {
			return
		}
	}
	lines, err := h.state.AddCartItems(userID, items...)
	if err != nil {
		fail(c, err)
		return
	}
	h.mylog.Action("cart_merged").Info("Merged anonymous cart", "user_id", userID, "items", len(items))
	c.JSON(http.StatusOK, cartResponse(lines))
}

func (h *handler) getCart(c *gin.Context) {
	userID, ok := ownUser(c, c.Query("userId"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cartResponse(h.state.Cart(userID)))
}

func (h *handler) addWishlistItem(c *gin.Context) {
	var item backend.WishlistItemRequest
	if err := c.ShouldBindJSON(&item); err != nil {
		abort(c, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}
	userID, ok := ownUser(c, item.UserID)
	if !ok {
		return
	}
	if err := h.state.AddWishlistItem(userID, item); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, backend.WishlistResponse{Items: h.state.Wishlist(userID)})
}

func (h *handler) removeWishlistItem(c *gin.Context) {
	var item backend.WishlistItemRequest
	if err := c.ShouldBindJSON(&item); err != nil {
		abort(c, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}
	userID, ok := ownUser(c, item.UserID)
	if !ok {
		return
	}
	if err := h.state.RemoveWishlistItem(userID, item.ProductID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, backend.WishlistResponse{Items: h.state.Wishlist(userID)})
}

func (h *handler) clearWishlist(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)
	userID, ok := ownUser(c, req.UserID)
	if !ok {
		return
	}
	h.state.ClearWishlist(userID)
	c.JSON(http.StatusOK, backend.WishlistResponse{Items: []models.WishlistEntry{}})
}

func (h *handler) syncWishlist(c *gin.Context) {
	var req backend.WishlistSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}
	userID, ok := ownUser(c, req.UserID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.state.SyncWishlist(userID, req.Items))
}

func (h *handler) getWishlist(c *gin.Context) {
	userID, ok := ownUser(c, c.Query("userId"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, backend.WishlistResponse{Items: h.state.Wishlist(userID)})
}

func (h *handler) userOrders(c *gin.Context) {
	userID, ok := ownUser(c, c.Param("userId"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.state.Orders(userID))
}

func (h *handler) cancelOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, errors.New("invalid order id"))
		return
	}
	userID := c.GetString(ctxUserID)
	update, err := h.state.CancelOrder(userID, id)
	if err != nil {
		h.mylog.Action("cancel_refused").Info("Cancellation refused", "order_id", id, "reason", err.Error())
		fail(c, err)
		return
	}
	h.publish(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": update.NewStatus})
}

func (h *handler) publish(ctx context.Context, update models.StatusUpdateMessage) {
	if h.publisher == nil {
		return
	}
	mylog := h.mylog.Action("status_update_publish").With("order_id", update.OrderID)
	body, err := json.Marshal(update)
	if err != nil {
		mylog.Error("Failed to encode status update", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, body); err != nil {
		mylog.Error("Failed to publish status update", err)
		return
	}
	mylog.Debug("Published status update", "new_status", string(update.NewStatus))
}
