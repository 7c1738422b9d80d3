package models

type Coupon struct {
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discountPercent"`
	Valid           bool    `json:"valid"`
	Message         string  `json:"message,omitempty"`
}
