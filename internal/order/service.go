package order

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type OrderService interface {
	GetBasket(userID uint) (*Order, error)
	AddItems(userID uint, itemsJSON string) (int, error)
	UpdateQuantities(userID uint, itemsJSON string) (int64, error)
	RemoveItems(userID uint, idsString string) (int64, bool, error)

	PlaceOrder(userID, orderID, contactID uint) error
	GetOrders(userID uint) ([]Order, error)
	GetPartnerOrders(shopUserID uint) ([]Order, error)

	SetShopState(shopUserID uint, stateToken string) (bool, error)
	GetActiveShops() ([]Shop, error)

	CreateContact(userID uint, contact *Contact) (uint, error)
	GetContacts(userID uint) ([]Contact, error)
	UpdateContact(userID, contactID uint, patch *Contact) error
	DeleteContact(userID, contactID uint) error
}

type orderService struct {
	storage Storage
	logger  *logrus.Entry
}

func NewService(storage Storage, log *logrus.Entry) OrderService {
	return &orderService{
		storage: storage,
		logger:  log,
	}
}

func (s *orderService) GetBasket(userID uint) (*Order, error) {
	basket, err := s.storage.GetBasket(userID)
	if err != nil {
		if errors.Is(err, errBasketNotFound) {
			return nil, nil
		}
		return nil, NewError(ServerAppError, "failed to load basket", 500, err)
	}

	basket.TotalSum = basket.Total()
	return basket, nil
}

// AddItems keeps the per-item short-circuit of the original flow: the
// first invalid or conflicting item ends the call, inserts made before it
// stay committed and are reflected in the returned count on success only.
func (s *orderService) AddItems(userID uint, itemsJSON string) (int, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal([]byte(itemsJSON), &rawItems); err != nil {
		return 0, NewError(JsonAppError, "incorrect request format", 400, err)
	}

	basket, err := s.storage.GetOrCreateBasket(userID)
	if err != nil {
		return 0, NewError(ServerAppError, "failed to get or create basket", 500, err)
	}

	created := 0
	for _, raw := range rawItems {
		var item struct {
			ProductInfoID uint `json:"product_info_id"`
			Quantity      uint `json:"quantity"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			return 0, NewError(ValidationAppError, "incorrect order item", 400, err)
		}
		if item.ProductInfoID == 0 || item.Quantity == 0 {
			return 0, NewError(ValidationAppError, "incorrect order item", 400, nil)
		}

		err := s.storage.AddOrderItem(basket.ID, item.ProductInfoID, item.Quantity)
		if err != nil {
			switch {
			case errors.Is(err, errProductInfoNotFound):
				return 0, NewError(ValidationAppError, "product info not found", 400, err)
			case errors.Is(err, errDuplicateBasketItem):
				return 0, NewError(ConflictAppError, "product already in basket", 409, err)
			default:
				return 0, NewError(ServerAppError, "failed to add order item", 500, err)
			}
		}
		created++
	}

	return created, nil
}

// UpdateQuantities skips entries whose id or quantity is not a positive
// integer; the returned count covers matched rows only.
func (s *orderService) UpdateQuantities(userID uint, itemsJSON string) (int64, error) {
	var rawItems []map[string]interface{}
	if err := json.Unmarshal([]byte(itemsJSON), &rawItems); err != nil {
		return 0, NewError(JsonAppError, "incorrect request format", 400, err)
	}

	basket, err := s.storage.GetOrCreateBasket(userID)
	if err != nil {
		return 0, NewError(ServerAppError, "failed to get or create basket", 500, err)
	}

	var updated int64
	for _, raw := range rawItems {
		id, okID := asPositiveInt(raw["id"])
		quantity, okQty := asPositiveInt(raw["quantity"])
		if !okID || !okQty {
			continue
		}

		count, err := s.storage.UpdateItemQuantity(basket.ID, id, quantity)
		if err != nil {
			return 0, NewError(ServerAppError, "failed to update order item", 500, err)
		}
		updated += count
	}

	return updated, nil
}

// RemoveItems deletes the listed positions and, when the basket runs
// empty, the basket order itself. The second return value reports that
// cleanup.
func (s *orderService) RemoveItems(userID uint, idsString string) (int64, bool, error) {
	var ids []uint
	for _, token := range strings.Split(idsString, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(token), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	if len(ids) == 0 {
		return 0, false, NewError(ValidationAppError, "incorrect items string", 400, errItemsString)
	}

	basket, err := s.storage.GetOrCreateBasket(userID)
	if err != nil {
		return 0, false, NewError(ServerAppError, "failed to get or create basket", 500, err)
	}

	deleted, err := s.storage.DeleteItems(basket.ID, ids)
	if err != nil {
		return 0, false, NewError(ServerAppError, "failed to delete order items", 500, err)
	}

	left, err := s.storage.CountItems(basket.ID)
	if err != nil {
		return 0, false, NewError(ServerAppError, "failed to count order items", 500, err)
	}
	if left == 0 {
		if err := s.storage.DeleteOrder(basket.ID); err != nil {
			return 0, false, NewError(ServerAppError, "failed to delete empty basket", 500, err)
		}
		return deleted, true, nil
	}

	return deleted, false, nil
}

func (s *orderService) PlaceOrder(userID, orderID, contactID uint) error {
	eventID := uuid.NewString()

	err := s.storage.PlaceOrder(userID, orderID, contactID, eventID)
	if err != nil {
		switch {
		case errors.Is(err, errContactNotFound):
			return NewError(ValidationAppError, "incorrect contact", 400, err)
		case errors.Is(err, errOrderWithUserIdAndOrderIdNotFound):
			return NewError(NotFoundAppError, "order not found", 404, err)
		default:
			return NewError(ServerAppError, "failed to place order", 500, err)
		}
	}

	s.logger.Infof("order %d placed by user %d, event %s", orderID, userID, eventID)
	return nil
}

func (s *orderService) GetOrders(userID uint) ([]Order, error) {
	orders, err := s.storage.GetOrdersByUserID(userID)
	if err != nil {
		return nil, NewError(ServerAppError, "failed to load orders", 500, err)
	}

	for i := range orders {
		orders[i].TotalSum = orders[i].Total()
	}
	return orders, nil
}

func (s *orderService) GetPartnerOrders(shopUserID uint) ([]Order, error) {
	orders, err := s.storage.GetPartnerOrders(shopUserID)
	if err != nil {
		return nil, NewError(ServerAppError, "failed to load partner orders", 500, err)
	}

	for i := range orders {
		orders[i].TotalSum = orders[i].Total()
	}
	return orders, nil
}

func (s *orderService) SetShopState(shopUserID uint, stateToken string) (bool, error) {
	state, err := parseStateToken(stateToken)
	if err != nil {
		return false, NewError(ValidationAppError, "incorrect state value", 400, err)
	}

	if err := s.storage.SetShopState(shopUserID, state); err != nil {
		if errors.Is(err, errShopNotFound) {
			return false, NewError(NotFoundAppError, "shop not found", 404, err)
		}
		return false, NewError(ServerAppError, "failed to change shop state", 500, err)
	}

	return state, nil
}

func (s *orderService) GetActiveShops() ([]Shop, error) {
	shops, err := s.storage.GetActiveShops()
	if err != nil {
		return nil, NewError(ServerAppError, "failed to load shops", 500, err)
	}
	return shops, nil
}

func (s *orderService) CreateContact(userID uint, contact *Contact) (uint, error) {
	if contact.City == "" || contact.Street == "" || contact.Phone == "" {
		return 0, NewError(ValidationAppError, "city, street and phone are required", 400, nil)
	}

	contact.ID = 0
	contact.UserID = userID

	id, err := s.storage.CreateContact(contact)
	if err != nil {
		return 0, NewError(ServerAppError, "failed to create contact", 500, err)
	}
	return id, nil
}

func (s *orderService) GetContacts(userID uint) ([]Contact, error) {
	contacts, err := s.storage.GetContactsByUserID(userID)
	if err != nil {
		return nil, NewError(ServerAppError, "failed to load contacts", 500, err)
	}
	return contacts, nil
}

func (s *orderService) UpdateContact(userID, contactID uint, patch *Contact) error {
	patch.ID = 0
	patch.UserID = 0

	err := s.storage.UpdateContact(userID, contactID, patch)
	if err != nil {
		if errors.Is(err, errContactNotFound) {
			return NewError(NotFoundAppError, "contact not found", 404, err)
		}
		return NewError(ServerAppError, "failed to update contact", 500, err)
	}
	return nil
}

func (s *orderService) DeleteContact(userID, contactID uint) error {
	err := s.storage.DeleteContact(userID, contactID)
	if err != nil {
		switch {
		case errors.Is(err, errContactNotFound):
			return NewError(NotFoundAppError, "contact not found", 404, err)
		case errors.Is(err, errContactReferenced):
			return NewError(ConflictAppError, "contact is used by a placed order", 409, err)
		default:
			return NewError(ServerAppError, "failed to delete contact", 500, err)
		}
	}
	return nil
}

// parseStateToken accepts the strtobool token set.
func parseStateToken(token string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	default:
		return false, errors.New("invalid truth value " + strconv.Quote(token))
	}
}

func asPositiveInt(v interface{}) (uint, bool) {
	f, ok := v.(float64)
	if !ok || f <= 0 || f != math.Trunc(f) {
		return 0, false
	}
	return uint(f), true
}
