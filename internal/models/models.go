package models

// Wire types for the EcoFinds REST API. Field names follow the backend's
// JSON serialization exactly; everything here is decoded from server
// responses and never mutated locally.

type User struct {
	ID           int     `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	ProfileImage *string `json:"profileImage"`
	CreatedAt    string  `json:"createdAt"`
}

type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	SellerID    int      `json:"sellerId"`
	SellerName  string   `json:"sellerName"`
	CreatedAt   string   `json:"createdAt"`
}

type CartItem struct {
	ID        int      `json:"id"`
	ProductID int      `json:"productId"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product"`
	AddedAt   string   `json:"addedAt"`
}

// Purchase is one line of the purchase history. The product field is a
// snapshot taken at checkout time, priced as it was then.
type Purchase struct {
	ID           int      `json:"id"`
	ProductID    int      `json:"productId"`
	Product      *Product `json:"product"`
	Quantity     int      `json:"quantity"`
	PurchaseDate string   `json:"purchaseDate"`
}

// PurchaseReceipt is the purchase record returned by checkout.
type PurchaseReceipt struct {
	ID           int           `json:"id"`
	UserID       int           `json:"userId"`
	PurchaseDate string        `json:"purchaseDate"`
	TotalAmount  float64       `json:"totalAmount"`
	Items        []ReceiptItem `json:"items"`
}

type ReceiptItem struct {
	ID           int      `json:"id"`
	ProductID    int      `json:"productId"`
	Product      *Product `json:"product"`
	PurchaseDate string   `json:"purchaseDate"`
	Quantity     int      `json:"quantity"`
}

// ProductPage is the paginated listing envelope of GET /products.
type ProductPage struct {
	Products      []Product `json:"products"`
	TotalProducts int       `json:"total_products"`
	CurrentPage   int       `json:"current_page"`
	TotalPages    int       `json:"total_pages"`
	HasNext       bool      `json:"has_next"`
	HasPrev       bool      `json:"has_prev"`
}
