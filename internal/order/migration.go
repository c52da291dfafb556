package order

import "gorm.io/gorm"

func RunMigration(db *gorm.DB) error {
	return db.AutoMigrate(
		&Category{},
		&Parameter{},
		&Shop{},
		&Product{},
		&ProductInfo{},
		&ProductParameter{},
		&Contact{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
	)
}
