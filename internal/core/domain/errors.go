package domain

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrOutOfStock       = errors.New("product out of stock")
	ErrInvalidIndex     = errors.New("invalid line index")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidSale      = errors.New("invalid sale")
	ErrSaleNotFound     = errors.New("sale not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidCategory  = errors.New("invalid category")
)
