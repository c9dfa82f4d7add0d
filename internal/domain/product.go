package domain

// Product — товар каталога с доступным для резервирования стоком.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       float64
	Stock       int
	Version     int64
}

// HasStock сообщает, хватает ли стока на qty единиц.
func (p *Product) HasStock(qty int) bool {
	return p.Stock >= qty
}

// User — владелец заказов.
type User struct {
	ID       int64
	Username string
	Email    string
}
