package order

import "time"

const (
	StateBasket    = "basket"
	StateNew       = "new"
	StateConfirmed = "confirmed"
	StateAssembled = "assembled"
	StateSent      = "sent"
	StateDelivered = "delivered"
	StateCanceled  = "canceled"
)

type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:uniq_user_basket,where:state = 'basket'" json:"user_id"`
	State     string    `gorm:"not null;default:'basket'" json:"state"`
	ContactID *uint     `json:"contact_id,omitempty"`
	Contact   *Contact  `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`

	// computed, not a column
	TotalSum float64 `gorm:"-" json:"total_sum"`
}

type OrderItem struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	OrderID       uint         `gorm:"uniqueIndex:uniq_order_product;not null" json:"order_id"`
	ProductInfoID uint         `gorm:"uniqueIndex:uniq_order_product;not null" json:"product_info_id"`
	ProductInfo   *ProductInfo `gorm:"foreignKey:ProductInfoID" json:"product_info,omitempty"`
	Quantity      uint         `gorm:"not null" json:"quantity"`
}

type Contact struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"index;not null" json:"user_id"`
	City      string `json:"city"`
	Street    string `json:"street"`
	House     string `json:"house"`
	Building  string `json:"building"`
	Apartment string `json:"apartment"`
	Phone     string `json:"phone"`
}

type Shop struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"index;not null" json:"user_id"`
	Name   string `json:"name"`
	State  bool   `gorm:"not null;default:true" json:"state"`
}

// Catalog read models. The catalog service owns these tables, the order
// service only resolves prices and validates item references.

type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `json:"name"`
	CategoryID uint      `json:"-"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

type ProductInfo struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	Model     string   `json:"model"`
	ProductID uint     `json:"-"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ShopID    uint     `gorm:"index" json:"shop"`
	Quantity  uint     `json:"quantity"`
	Price     float64  `json:"price"`
	PriceRRC  float64  `json:"price_rrc"`

	Parameters []ProductParameter `gorm:"foreignKey:ProductInfoID" json:"product_parameters,omitempty"`
}

type Parameter struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`
}

type ProductParameter struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ProductInfoID uint       `gorm:"index" json:"-"`
	ParameterID   uint       `json:"-"`
	Parameter     *Parameter `gorm:"foreignKey:ParameterID" json:"parameter,omitempty"`
	Value         string     `json:"value"`
}

// Total recomputes the annotated order total from its loaded items.
func (o *Order) Total() float64 {
	var sum float64
	for _, item := range o.Items {
		if item.ProductInfo != nil {
			sum += float64(item.Quantity) * item.ProductInfo.Price
		}
	}
	return sum
}
