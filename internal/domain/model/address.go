package model

import (
	"strings"
	"time"
)

const MaxAddressLineLength = 255

type Address struct {
	Code      string    `json:"code"       db:"code"`
	UserCode  string    `json:"user_code"  db:"user_code"`
	Line      string    `json:"line"       db:"address_line"`
	City      string    `json:"city"       db:"city"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ShippingDetails is the free-text address a customer types at checkout.
type ShippingDetails struct {
	Street   string `json:"address"`
	Ward     string `json:"ward"`
	District string `json:"district"`
	City     string `json:"city"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Note     string `json:"note"`
}

// IsEmpty reports whether no location was given. Receiver name, phone and
// note alone do not make an address.
func (d ShippingDetails) IsEmpty() bool {
	for _, part := range []string{d.Street, d.Ward, d.District, d.City} {
		if strings.TrimSpace(part) != "" {
			return false
		}
	}
	return true
}

// Line joins the details into a single address line of at most
// MaxAddressLineLength characters:
//
//	street, ward, district | Receiver: name, Phone: phone | Note: note
func (d ShippingDetails) Line() string {
	location := make([]string, 0, 3)
	for _, part := range []string{d.Street, d.Ward, d.District} {
		if p := strings.TrimSpace(part); p != "" {
			location = append(location, p)
		}
	}

	segments := []string{
		strings.Join(location, ", "),
		"Receiver: " + strings.TrimSpace(d.FullName) + ", Phone: " + strings.TrimSpace(d.Phone),
	}
	if note := strings.TrimSpace(d.Note); note != "" {
		segments = append(segments, "Note: "+note)
	}

	return truncate(strings.Join(segments, " | "), MaxAddressLineLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// NewShippingAddress builds the non-default address saved for a one-off
// checkout.
func NewShippingAddress(userCode string, d ShippingDetails) *Address {
	return &Address{
		Code:      NewCode(),
		UserCode:  userCode,
		Line:      d.Line(),
		City:      strings.TrimSpace(d.City),
		IsDefault: false,
		CreatedAt: time.Now().UTC(),
	}
}
