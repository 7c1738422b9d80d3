package api

import (
	"clarity/internal/models"
	"context"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

func adaptCoupon(code string) func(json.RawMessage) (models.Coupon, error) {
	return func(raw json.RawMessage) (models.Coupon, error) {
		obj, err := decodeObject(raw)
		if err != nil {
			return models.Coupon{}, err
		}
		if nested, ok := obj["coupon"].(map[string]any); ok {
			obj = nested
		}
		coupon := models.Coupon{
			Code:    pickString(obj, "code", "couponCode"),
			Valid:   true,
			Message: pickString(obj, "message"),
		}
		if coupon.Code == "" {
			coupon.Code = code
		}
		if d, ok := pickNumber(obj, "discountPercent", "discountPercentage", "discount", "percentage"); ok {
			coupon.DiscountPercent = d
		}
		if valid, ok := pickBool(obj, "valid", "isValid", "active", "isActive"); ok {
			coupon.Valid = valid
		}
		return coupon, nil
	}
}

func (c *Client) LookupCoupon(ctx context.Context, code string) models.Result[models.Coupon] {
	code = strings.ToUpper(strings.TrimSpace(code))
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/coupons/" + url.PathEscape(code),
		endpoint: "coupons",
	}, adaptCoupon(code))
}
