package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkglogger "github.com/retail-aggregator/order-service/pkg/logger"
)

type stubAuth struct {
	principals map[string]Principal
}

func (a *stubAuth) Auth(clientToken string) (int, Principal, error) {
	principal, ok := a.principals[clientToken]
	if !ok {
		return http.StatusUnauthorized, Principal{}, nil
	}
	return http.StatusOK, principal, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, catalogFixture) {
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	fx := seedCatalog(t, db)
	log := pkglogger.NewLogger("error", &OrderLogHook{})
	service := NewService(NewStorage(db), log)

	auth := &stubAuth{principals: map[string]Principal{
		"customer-token": {UserID: 1, Role: RoleCustomer},
		"shop-token":     {UserID: fx.shop.UserID, Role: RoleShop},
	}}

	router := gin.New()
	NewHandler(service, log, auth).Register(router)

	return router, db, fx
}

func doRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	router, _, _ := setupRouter(t)

	t.Run("missing token", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/basket", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/basket", "bogus", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBasketEndpoints(t *testing.T) {
	router, _, fx := setupRouter(t)

	t.Run("empty basket", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/basket", "customer-token", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, true, body["status"])
		assert.Empty(t, body["basket"])
	})

	t.Run("post items", func(t *testing.T) {
		items := fmt.Sprintf(`[{"product_info_id": %d, "quantity": 2}]`, fx.phone.ID)
		w := doRequest(router, http.MethodPost, "/api/v1/basket", "customer-token", gin.H{"items": items})
		require.Equal(t, http.StatusCreated, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, true, body["status"])
		assert.Equal(t, float64(1), body["created"])
	})

	t.Run("missing items field", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/basket", "customer-token", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate item conflicts", func(t *testing.T) {
		items := fmt.Sprintf(`[{"product_info_id": %d, "quantity": 2}]`, fx.phone.ID)
		w := doRequest(router, http.MethodPost, "/api/v1/basket", "customer-token", gin.H{"items": items})
		require.Equal(t, http.StatusConflict, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, false, body["status"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("basket with total", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/basket", "customer-token", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		baskets := body["basket"].([]any)
		require.Len(t, baskets, 1)
		basket := baskets[0].(map[string]any)
		assert.Equal(t, 2*fx.phone.Price, basket["total_sum"])
	})

	t.Run("delete reports the count while items remain", func(t *testing.T) {
		items := fmt.Sprintf(`[{"product_info_id": %d, "quantity": 1}]`, fx.charger.ID)
		w := doRequest(router, http.MethodPost, "/api/v1/basket", "customer-token", gin.H{"items": items})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/basket", "customer-token", nil)
		body := decodeBody(t, w)
		basket := body["basket"].([]any)[0].(map[string]any)
		var chargerItemID float64
		for _, raw := range basket["items"].([]any) {
			item := raw.(map[string]any)
			if item["product_info_id"].(float64) == float64(fx.charger.ID) {
				chargerItemID = item["id"].(float64)
			}
		}
		require.NotZero(t, chargerItemID)

		w = doRequest(router, http.MethodDelete, "/api/v1/basket", "customer-token", gin.H{"items": fmt.Sprintf("%d", int(chargerItemID))})
		require.Equal(t, http.StatusOK, w.Code)

		body = decodeBody(t, w)
		assert.Equal(t, true, body["status"])
		assert.Equal(t, float64(1), body["deleted"])
		assert.NotContains(t, body, "message")
	})

	t.Run("deleting the last item reports count and empty-basket note", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/basket", "customer-token", nil)
		body := decodeBody(t, w)
		basket := body["basket"].([]any)[0].(map[string]any)
		itemID := basket["items"].([]any)[0].(map[string]any)["id"].(float64)

		w = doRequest(router, http.MethodDelete, "/api/v1/basket", "customer-token", gin.H{"items": fmt.Sprintf("%d", int(itemID))})
		require.Equal(t, http.StatusOK, w.Code)

		body = decodeBody(t, w)
		assert.Equal(t, true, body["status"])
		assert.Equal(t, float64(1), body["deleted"])
		assert.NotEmpty(t, body["message"])

		w = doRequest(router, http.MethodGet, "/api/v1/basket", "customer-token", nil)
		body = decodeBody(t, w)
		assert.Empty(t, body["basket"])
	})
}

func TestOrderEndpoints(t *testing.T) {
	router, db, fx := setupRouter(t)

	items := fmt.Sprintf(`[{"product_info_id": %d, "quantity": 1}]`, fx.charger.ID)
	w := doRequest(router, http.MethodPost, "/api/v1/basket", "customer-token", gin.H{"items": items})
	require.Equal(t, http.StatusCreated, w.Code)

	var basket Order
	require.NoError(t, db.Where("user_id = ? AND state = ?", 1, StateBasket).First(&basket).Error)
	contact := seedContact(t, db, 1)

	t.Run("missing fields", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/order", "customer-token", gin.H{"order_id": basket.ID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("place order", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/order", "customer-token", gin.H{"order_id": basket.ID, "contact": contact.ID})
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, true, body["status"])
	})

	t.Run("list placed orders", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/order", "customer-token", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		orders := body["orders"].([]any)
		require.Len(t, orders, 1)
		assert.Equal(t, StateNew, orders[0].(map[string]any)["state"])
	})
}

func TestPartnerEndpoints(t *testing.T) {
	router, db, fx := setupRouter(t)

	t.Run("customer is rejected", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/partner/orders", "customer-token", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doRequest(router, http.MethodPost, "/api/v1/partner/state", "customer-token", gin.H{"state": "on"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("shop toggles its state", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/partner/state", "shop-token", gin.H{"state": "off"})
		require.Equal(t, http.StatusOK, w.Code)

		var shop Shop
		require.NoError(t, db.First(&shop, fx.shop.ID).Error)
		assert.False(t, shop.State)
	})

	t.Run("bad state token", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/partner/state", "shop-token", gin.H{"state": "maybe"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("shop lists partner orders", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/partner/orders", "shop-token", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, true, body["status"])
	})

	t.Run("active shops are public to any principal", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/partner/state", "shop-token", gin.H{"state": "on"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/shops", "customer-token", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		shops := body["shops"].([]any)
		require.Len(t, shops, 1)
		assert.Equal(t, fx.shop.Name, shops[0].(map[string]any)["name"])
	})
}

func TestContactEndpoints(t *testing.T) {
	router, _, _ := setupRouter(t)

	t.Run("create and list", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/user/contact", "customer-token", gin.H{
			"city": "Moscow", "street": "Arbat", "house": "10", "phone": "+7 977 800 70 52",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/user/contact", "customer-token", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		contacts := body["contacts"].([]any)
		require.Len(t, contacts, 1)
	})

	t.Run("incomplete contact", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/user/contact", "customer-token", gin.H{"city": "Moscow"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("patch phone", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/user/contact", "customer-token", nil)
		body := decodeBody(t, w)
		id := body["contacts"].([]any)[0].(map[string]any)["id"].(float64)

		w = doRequest(router, http.MethodPatch, fmt.Sprintf("/api/v1/user/contact/%d", int(id)), "customer-token", gin.H{"phone": "+7 999 999 99 99"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/user/contact", "customer-token", nil)
		body = decodeBody(t, w)
		assert.Equal(t, "+7 999 999 99 99", body["contacts"].([]any)[0].(map[string]any)["phone"])
	})

	t.Run("delete", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/user/contact", "customer-token", nil)
		body := decodeBody(t, w)
		id := body["contacts"].([]any)[0].(map[string]any)["id"].(float64)

		w = doRequest(router, http.MethodDelete, fmt.Sprintf("/api/v1/user/contact/%d", int(id)), "customer-token", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/user/contact", "customer-token", nil)
		body = decodeBody(t, w)
		assert.Empty(t, body["contacts"])
	})
}
