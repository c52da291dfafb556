package order

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Storage interface {
	GetOrCreateBasket(userID uint) (*Order, error)
	GetBasket(userID uint) (*Order, error)
	AddOrderItem(orderID, productInfoID, quantity uint) error
	UpdateItemQuantity(orderID, itemID, quantity uint) (int64, error)
	DeleteItems(orderID uint, ids []uint) (int64, error)
	CountItems(orderID uint) (int64, error)
	DeleteOrder(orderID uint) error

	PlaceOrder(userID, orderID, contactID uint, eventID string) error
	GetOrdersByUserID(userID uint) ([]Order, error)
	GetPartnerOrders(shopUserID uint) ([]Order, error)

	SetShopState(shopUserID uint, state bool) error
	GetActiveShops() ([]Shop, error)

	CreateContact(contact *Contact) (uint, error)
	GetContactsByUserID(userID uint) ([]Contact, error)
	UpdateContact(userID, contactID uint, patch *Contact) error
	DeleteContact(userID, contactID uint) error

	FetchPendingEvents(limit int) ([]OutboxEvent, error)
	MarkEventSent(id uint) error
}

type OrderStorage struct {
	db *gorm.DB
}

func NewStorage(db *gorm.DB) Storage {
	return &OrderStorage{
		db: db,
	}
}

// GetOrCreateBasket relies on the partial unique index over
// (user_id) WHERE state = 'basket': when two requests race on creation the
// loser gets a duplicate-key error and re-reads the winner's row.
func (s *OrderStorage) GetOrCreateBasket(userID uint) (*Order, error) {
	var basket Order
	err := s.db.Where("user_id = ? AND state = ?", userID, StateBasket).First(&basket).Error
	if err == nil {
		return &basket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	basket = Order{UserID: userID, State: StateBasket}
	err = s.db.Create(&basket).Error
	if err == nil {
		return &basket, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to create basket - %s", err)
	}

	basket = Order{}
	if err := s.db.Where("user_id = ? AND state = ?", userID, StateBasket).First(&basket).Error; err != nil {
		return nil, err
	}
	return &basket, nil
}

func (s *OrderStorage) GetBasket(userID uint) (*Order, error) {
	var basket Order
	err := s.db.Where("user_id = ? AND state = ?", userID, StateBasket).
		Preload("Items.ProductInfo.Product.Category").
		Preload("Items.ProductInfo.Parameters.Parameter").
		First(&basket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBasketNotFound
		}
		return nil, err
	}
	return &basket, nil
}

func (s *OrderStorage) AddOrderItem(orderID, productInfoID, quantity uint) error {
	var count int64
	if err := s.db.Model(&ProductInfo{}).Where("id = ?", productInfoID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errProductInfoNotFound
	}

	item := OrderItem{
		OrderID:       orderID,
		ProductInfoID: productInfoID,
		Quantity:      quantity,
	}

	err := s.db.Create(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errDuplicateBasketItem
		}
		return fmt.Errorf("failed to create order item - %s", err)
	}
	return nil
}

func (s *OrderStorage) UpdateItemQuantity(orderID, itemID, quantity uint) (int64, error) {
	result := s.db.Model(&OrderItem{}).
		Where("order_id = ? AND id = ?", orderID, itemID).
		Update("quantity", quantity)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *OrderStorage) DeleteItems(orderID uint, ids []uint) (int64, error) {
	result := s.db.Where("order_id = ? AND id IN ?", orderID, ids).Delete(&OrderItem{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *OrderStorage) CountItems(orderID uint) (int64, error) {
	var count int64
	err := s.db.Model(&OrderItem{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}

func (s *OrderStorage) DeleteOrder(orderID uint) error {
	return s.db.Delete(&Order{}, orderID).Error
}

// PlaceOrder promotes a basket into a placed order and records the
// notification event in the same transaction. The update is scoped by
// order id, owner and basket state, so a foreign or already placed order
// matches zero rows.
func (s *OrderStorage) PlaceOrder(userID, orderID, contactID uint, eventID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var contact Contact
		err := tx.Where("id = ? AND user_id = ?", contactID, userID).First(&contact).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errContactNotFound
			}
			return err
		}

		result := tx.Model(&Order{}).
			Where("id = ? AND user_id = ? AND state = ?", orderID, userID, StateBasket).
			Updates(map[string]interface{}{
				"contact_id": contactID,
				"state":      StateNew,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errOrderWithUserIdAndOrderIdNotFound
		}

		return insertOutboxEvent(tx, eventID, TopicOrderCreated, fmt.Sprint(orderID), OrderCreatedPayload{
			OrderID: orderID,
			UserID:  userID,
		})
	})
}

func (s *OrderStorage) GetOrdersByUserID(userID uint) ([]Order, error) {
	var orders []Order
	err := s.db.Where("user_id = ? AND state <> ?", userID, StateBasket).
		Preload("Items.ProductInfo.Product.Category").
		Preload("Items.ProductInfo.Parameters.Parameter").
		Preload("Contact").
		Find(&orders).Error
	if err != nil {
		return []Order{}, err
	}
	return orders, nil
}

// GetPartnerOrders joins through items and product infos to the shops of
// the given owner. DISTINCT keeps an order with several matching items
// from appearing more than once.
func (s *OrderStorage) GetPartnerOrders(shopUserID uint) ([]Order, error) {
	var orders []Order
	err := s.db.Distinct("orders.*").
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Joins("JOIN product_infos ON product_infos.id = order_items.product_info_id").
		Joins("JOIN shops ON shops.id = product_infos.shop_id").
		Where("shops.user_id = ? AND orders.state <> ?", shopUserID, StateBasket).
		Preload("Items.ProductInfo.Product.Category").
		Preload("Items.ProductInfo.Parameters.Parameter").
		Preload("Contact").
		Find(&orders).Error
	if err != nil {
		return []Order{}, err
	}
	return orders, nil
}

func (s *OrderStorage) SetShopState(shopUserID uint, state bool) error {
	result := s.db.Model(&Shop{}).Where("user_id = ?", shopUserID).Update("state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errShopNotFound
	}
	return nil
}

func (s *OrderStorage) GetActiveShops() ([]Shop, error) {
	var shops []Shop
	err := s.db.Where("state = ?", true).Find(&shops).Error
	if err != nil {
		return []Shop{}, err
	}
	return shops, nil
}

func (s *OrderStorage) CreateContact(contact *Contact) (uint, error) {
	result := s.db.Create(contact)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create contact - %s", result.Error)
	}
	return contact.ID, nil
}

func (s *OrderStorage) GetContactsByUserID(userID uint) ([]Contact, error) {
	var contacts []Contact
	err := s.db.Where("user_id = ?", userID).Find(&contacts).Error
	if err != nil {
		return []Contact{}, err
	}
	return contacts, nil
}

func (s *OrderStorage) UpdateContact(userID, contactID uint, patch *Contact) error {
	result := s.db.Model(&Contact{}).
		Where("id = ? AND user_id = ?", contactID, userID).
		Updates(patch)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errContactNotFound
	}
	return nil
}

// DeleteContact refuses to remove a contact still referenced by a placed
// order. Basket orders never carry a contact, so counting non-basket
// references is enough.
func (s *OrderStorage) DeleteContact(userID, contactID uint) error {
	var count int64
	err := s.db.Model(&Order{}).
		Where("contact_id = ? AND state <> ?", contactID, StateBasket).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return errContactReferenced
	}

	result := s.db.Where("id = ? AND user_id = ?", contactID, userID).Delete(&Contact{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errContactNotFound
	}
	return nil
}
